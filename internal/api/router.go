package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"github.com/wye/wye-server/internal/api/apierr"
	"github.com/wye/wye-server/internal/api/gql"
	"github.com/wye/wye-server/internal/api/middleware"
	httpmw "github.com/wye/wye-server/internal/middleware"
	"github.com/wye/wye-server/internal/observability"
	"github.com/wye/wye-server/internal/services/accounts"
	"github.com/wye/wye-server/internal/services/rooms"
	"github.com/wye/wye-server/internal/services/sessions"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	AccountsService *accounts.Service
	SessionsService *sessions.Service
	RoomsService    *rooms.Service
	Metrics         *observability.Metrics
	Cookie          middleware.SessionCookie
	AllowedOrigins  []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	svc := gql.Services{
		Accounts: cfg.AccountsService,
		Sessions: cfg.SessionsService,
		Rooms:    cfg.RoomsService,
		Metrics:  cfg.Metrics,
		Logger:   cfg.Logger,
	}

	// Create handlers
	publicHandler := gql.NewPublicHandler(svc, cfg.Cookie)
	privateHandler := gql.NewPrivateHandler(svc, cfg.Cookie)

	// Create middleware
	gate := middleware.NewGate(cfg.SessionsService, cfg.Cookie, cfg.Logger, cfg.Metrics)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)
	loggingMiddleware := httpmw.Logging(cfg.Logger)

	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.Use(httpmw.RequestID)
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	// Public surface: anonymous callers allowed, principal attached when present
	public := gate.OptionalAuth()(publicHandler)
	r.Handle("/graphql", public).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/graphql/", public).Methods(http.MethodGet, http.MethodPost)

	// Private surface: the gate rejects anonymous callers before any resolver runs
	private := gate.Auth()(privateHandler)
	r.Handle("/private_graphql", private).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/private_graphql/", private).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	return cors.Handler(corsOptions(cfg.AllowedOrigins))(r)
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "credentials"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierr.WriteError(w, apierr.NewMethodNotAllowedError(r.Method+" is not supported"))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
