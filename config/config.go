package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/models"
)

const (
	defaultPort           = "8080"
	defaultSessionTTL     = 12 * time.Hour
	defaultRequestTimeout = 30 * time.Second
)

// Config holds the project config values
type Config struct {
	URL            string
	DatabaseName   string
	BaseURL        string
	Port           string
	Env            string
	JWTSecret      string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
}

// New sets up all config related services. A .env file in the working
// directory is loaded first when present; real environment variables win.
func New() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		zap.S().Warnw("failed to load .env file", "error", err)
	}

	env := os.Getenv("ENV")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:            os.Getenv("DB_URI"),
		DatabaseName:   os.Getenv("DB_NAME"),
		BaseURL:        os.Getenv("BASE_URL"),
		Port:           getEnv("PORT", defaultPort),
		Env:            env,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", defaultSessionTTL),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", defaultRequestTimeout),
	}
}

// Validate reports the first missing required setting
func (c *Config) Validate() error {
	switch {
	case c.URL == "":
		return errors.New("DB_URI environment variable is required")
	case c.DatabaseName == "":
		return errors.New("DB_NAME environment variable is required")
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET environment variable is required")
	}
	return nil
}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts a Go duration ("90s") or a whole number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	zap.S().Warnw("invalid duration, using default", "key", key, "value", value, "default", defaultValue)
	return defaultValue
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "status", httpStatusCode, "error", err)

	resp := models.ErrorMessageResponse{Response: models.MessageError{Message: message}}
	if err != nil {
		resp.Response.Error = err.Error()
	}
	b, _ := json.Marshal(resp)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	w.Write(b)
}
