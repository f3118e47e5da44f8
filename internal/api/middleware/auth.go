package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wye/wye-server/internal/api/apierr"
	"github.com/wye/wye-server/internal/logging"
	"github.com/wye/wye-server/internal/middleware"
	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/observability"
)

type contextKey string

const principalContextKey contextKey = "principal"

// SessionResolver maps a presented token to its user and session
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*model.User, *model.Session, error)
}

// Principal is the authenticated caller of a request
type Principal struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// Decision is the outcome of authenticating a request: authorized or anonymous
type Decision struct {
	principal *Principal
}

// Authorized returns a Decision carrying p
func Authorized(p *Principal) Decision {
	return Decision{principal: p}
}

// Anonymous is the Decision for a request without a valid session
var Anonymous = Decision{}

// Principal returns the authorized principal, or false when anonymous
func (d Decision) Principal() (*Principal, bool) {
	return d.principal, d.principal != nil
}

// Gate authenticates requests from their session token
type Gate struct {
	sessions SessionResolver
	cookie   SessionCookie
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewGate creates a Gate reading tokens from cookie (or a Bearer header)
func NewGate(sessions SessionResolver, cookie SessionCookie, logger *slog.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{
		sessions: sessions,
		cookie:   cookie,
		logger:   logger,
		metrics:  metrics,
	}
}

// Decide resolves the request's token. Only store failures return an error.
func (g *Gate) Decide(r *http.Request) (Decision, error) {
	token := g.extractToken(r)
	if token == "" {
		return Anonymous, nil
	}

	user, session, err := g.sessions.Resolve(r.Context(), token)
	if err != nil {
		return Anonymous, err
	}
	if user == nil {
		return Anonymous, nil
	}
	return Authorized(&Principal{User: user, Session: session, Token: token}), nil
}

// Auth rejects anonymous requests with 401 before next runs
func (g *Gate) Auth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := g.Decide(r)
			if err != nil {
				g.fail(w, r, err)
				return
			}

			principal, ok := decision.Principal()
			if !ok {
				g.metrics.AuthEvent(observability.EventGateRejected)
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// OptionalAuth attaches the principal when there is one and always continues
func (g *Gate) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := g.Decide(r)
			if err != nil {
				g.fail(w, r, err)
				return
			}

			if principal, ok := decision.Principal(); ok {
				r = r.WithContext(WithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) fail(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(g.logger, "session resolution failed", err,
		"request_id", middleware.GetRequestID(r.Context()))
	apierr.WriteError(w, apierr.NewInternalError())
}

// extractToken extracts the session token from the request
func (g *Gate) extractToken(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// Fall back to cookie
	return g.cookie.Read(r)
}

// WithPrincipal returns ctx carrying p
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// GetPrincipal returns the authenticated principal from the request context
func GetPrincipal(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// GetUser returns the authenticated user, or nil for anonymous requests
func GetUser(ctx context.Context) *model.User {
	if p := GetPrincipal(ctx); p != nil {
		return p.User
	}
	return nil
}

// MustGetPrincipal returns the authenticated principal or panics
func MustGetPrincipal(ctx context.Context) *Principal {
	p := GetPrincipal(ctx)
	if p == nil {
		panic("no principal in context - auth middleware not applied?")
	}
	return p
}
