package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linesmerrill/dispatch-board/config"
)

var a = App{Config: config.Config{
	JWTSecret:      "test-secret",
	SessionTTL:     time.Hour,
	RequestTimeout: time.Second,
}}

func executeRequest(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func checkResponseCode(t *testing.T, expected, actual int) {
	if expected != actual {
		t.Errorf("Expected response code %d. Got %d\n", expected, actual)
	}
}

func TestUnknownRoute(t *testing.T) {
	a.Router = a.New()
	req, _ := http.NewRequest("GET", "/asdf", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusNotFound, response.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	a.Router = a.New()
	req, _ := http.NewRequest("GET", "/health", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusOK, response.Code)

	if !strings.Contains(response.Body.String(), "alive") {
		t.Errorf("Expected 'alive' in the reponse. Got '%s'", response.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	a.Router = a.New()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusOK, response.Code)
}

func TestApp_WritesRequireSession(t *testing.T) {
	a.Router = a.New()
	routes := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/incidents"},
		{"PATCH", "/api/v1/incidents/5fc51e8a6ac5e1e3c9e8d9a1"},
		{"DELETE", "/api/v1/incidents/5fc51e8a6ac5e1e3c9e8d9a1"},
		{"POST", "/api/v1/chat"},
		{"DELETE", "/api/v1/chat/5fc51e8a6ac5e1e3c9e8d9a1"},
		{"POST", "/api/v1/config"},
		{"DELETE", "/api/v1/config/5fc51e8a6ac5e1e3c9e8d9a1"},
	}
	for _, route := range routes {
		req, _ := http.NewRequest(route.method, route.path, strings.NewReader(`{}`))
		response := executeRequest(req)
		checkResponseCode(t, http.StatusUnauthorized, response.Code)
	}
}

func TestApp_AnonymousSessionOpensWrites(t *testing.T) {
	a.Router = a.New()
	req, _ := http.NewRequest("POST", "/api/v1/auth/anonymous", nil)
	response := executeRequest(req)
	checkResponseCode(t, http.StatusOK, response.Code)

	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &session); err != nil {
		t.Fatal(err)
	}

	// past the session check, the empty body fails validation before any db call
	req, _ = http.NewRequest("POST", "/api/v1/config", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+session.Token)
	response = executeRequest(req)
	checkResponseCode(t, http.StatusBadRequest, response.Code)
}
