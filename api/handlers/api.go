package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/api"
	"github.com/linesmerrill/dispatch-board/config"
	"github.com/linesmerrill/dispatch-board/databases"
	"github.com/linesmerrill/dispatch-board/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Hub      *api.Hub
	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Hub == nil {
		a.Hub = api.NewHub()
	}
	sessions := api.NewSessions(context.Background(), a.Config.JWTSecret, a.Config.SessionTTL)

	i := Incident{DB: databases.NewIncidentDatabase(a.dbHelper)}
	c := Chat{DB: databases.NewChatDatabase(a.dbHelper)}
	ce := ConfigEntry{DB: databases.NewConfigEntryDatabase(a.dbHelper)}
	f := Feed{
		Hub: a.Hub,
		Sources: map[string]databases.LiveDatabase{
			models.IncidentCollection: databases.NewLiveDatabase(a.dbHelper, models.IncidentCollection),
			models.ChatCollection:     databases.NewLiveDatabase(a.dbHelper, models.ChatCollection),
			models.ConfigCollection:   databases.NewLiveDatabase(a.dbHelper, models.ConfigCollection),
		},
	}

	r := mux.NewRouter()

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(api.MetricsMiddleware)

	rest := api.TimeoutMiddleware(a.Config.RequestTimeout)
	public := func(h http.HandlerFunc) http.Handler { return rest(h) }
	private := func(h http.HandlerFunc) http.Handler { return rest(sessions.Middleware(h)) }

	apiV1.Handle("/auth/anonymous", public(sessions.AnonymousSessionHandler)).Methods("POST")

	apiV1.Handle("/incidents", public(i.IncidentsHandler)).Methods("GET")
	apiV1.Handle("/incidents", private(i.CreateIncidentHandler)).Methods("POST")
	apiV1.Handle("/incidents/{id}", private(i.UpdateIncidentHandler)).Methods("PATCH")
	apiV1.Handle("/incidents/{id}", private(i.DeleteIncidentHandler)).Methods("DELETE")

	apiV1.Handle("/chat", public(c.ChatHandler)).Methods("GET")
	apiV1.Handle("/chat", private(c.CreateChatHandler)).Methods("POST")
	apiV1.Handle("/chat/{id}", private(c.DeleteChatHandler)).Methods("DELETE")

	apiV1.Handle("/config", public(ce.ConfigEntriesHandler)).Methods("GET")
	apiV1.Handle("/config", private(ce.CreateConfigEntryHandler)).Methods("POST")
	apiV1.Handle("/config/{id}", private(ce.DeleteConfigEntryHandler)).Methods("DELETE")

	// feeds stay open for the life of a board, so no request timeout
	apiV1.Handle("/feeds/{collection}", http.HandlerFunc(f.FeedHandler)).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	ctx, cancel := api.WithQueryTimeout(context.Background())
	defer cancel()
	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client = client
	zap.S().Info("dispatch-board api has connected to the database")

	// initialize api router
	a.initializeRoutes()
	return nil

}

// Close disconnects from the database
func (a *App) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	w.Write(b)
}
