package gql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/graph-gophers/graphql-go"

	"github.com/wye/wye-server/internal/api/apierr"
	"github.com/wye/wye-server/internal/api/middleware"
	"github.com/wye/wye-server/internal/api/response"
	"github.com/wye/wye-server/internal/logging"
	"github.com/wye/wye-server/internal/observability"
	"github.com/wye/wye-server/internal/services/sessions"
)

// Surface names, used as the metrics label
const (
	SurfacePublic  = "public"
	SurfacePrivate = "private"
)

// maxBodyBytes caps request documents
const maxBodyBytes = 1 << 20

// maxQueryDepth bounds nesting for both schemas
const maxQueryDepth = 10

// Handler serves one GraphQL surface over HTTP
type Handler struct {
	schema  *graphql.Schema
	surface string
	cookie   middleware.SessionCookie
	sessions *sessions.Service
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewPublicHandler serves the public schema: registration, login and me
func NewPublicHandler(svc Services, cookie middleware.SessionCookie) *Handler {
	return newHandler(publicSchema, &PublicResolver{svc: svc}, SurfacePublic, svc, cookie)
}

// NewPrivateHandler serves the private schema. It must sit behind the gate's Auth.
func NewPrivateHandler(svc Services, cookie middleware.SessionCookie) *Handler {
	return newHandler(privateSchema, &PrivateResolver{svc: svc}, SurfacePrivate, svc, cookie)
}

func newHandler(sdl string, resolver interface{}, surface string, svc Services, cookie middleware.SessionCookie) *Handler {
	schema := graphql.MustParseSchema(sdl, resolver,
		graphql.MaxDepth(maxQueryDepth),
		graphql.Logger(&panicLogger{logger: svc.Logger}),
	)
	return &Handler{
		schema:   schema,
		surface:  surface,
		cookie:   cookie,
		sessions: svc.Sessions,
		logger:   svc.Logger,
		metrics:  svc.Metrics,
	}
}

// Params is a GraphQL request document with its variables
type Params struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// ServeHTTP handles POST /graphql/ (and GET)
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := parseParams(w, r)
	if err != nil {
		h.writeError(w, apierr.NewInvalidRequestError(err.Error()))
		return
	}

	st := &requestState{}
	ctx := withState(r.Context(), st)
	resp := h.schema.Exec(ctx, params.Query, params.OperationName, params.Variables)

	token, expires, cleared, fatal := st.snapshot()
	if fatal != nil {
		// The client never receives a session issued by an earlier field
		if token != "" {
			h.revoke(r.Context(), token)
		}
		h.writeError(w, apierr.NewInternalError())
		return
	}

	switch {
	case token != "":
		h.cookie.Set(w, token, expires)
	case cleared:
		h.cookie.Clear(w)
	}

	// No data means the document never executed (syntax or validation error)
	status := http.StatusOK
	if resp.Data == nil && len(resp.Errors) > 0 {
		status = http.StatusBadRequest
	}
	h.count(status)
	response.JSON(w, status, resp)
}

func (h *Handler) revoke(ctx context.Context, token string) {
	if err := h.sessions.Invalidate(context.WithoutCancel(ctx), token); err != nil {
		logging.LogError(h.logger, "revoke undelivered session", err, "request_id", requestID(ctx))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.count(apierr.Status(err))
	apierr.WriteError(w, err)
}

func (h *Handler) count(status int) {
	h.metrics.RequestsTotal.WithLabelValues(h.surface, strconv.Itoa(status)).Inc()
}

var errMissingQuery = errors.New("must provide query string")

// parseParams reads the document from the query string, a JSON body, a raw
// application/graphql body or form fields.
func parseParams(w http.ResponseWriter, r *http.Request) (Params, error) {
	var p Params

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

		switch mediaType {
		case "application/json":
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
				return p, errors.New("request body is not valid JSON")
			}
		case "application/graphql":
			body, err := io.ReadAll(r.Body)
			if err != nil {
				return p, errors.New("could not read request body")
			}
			p.Query = string(body)
		case "application/x-www-form-urlencoded", "multipart/form-data":
			if err := formParams(r, &p); err != nil {
				return p, err
			}
		}
	}

	// The query string fills whatever the body left out
	q := r.URL.Query()
	if p.Query == "" {
		p.Query = q.Get("query")
	}
	if p.OperationName == "" {
		p.OperationName = q.Get("operationName")
	}
	if p.Variables == nil {
		if err := decodeVariables(q.Get("variables"), &p); err != nil {
			return p, err
		}
	}

	if p.Query == "" {
		return p, errMissingQuery
	}
	return p, nil
}

func formParams(r *http.Request, p *Params) error {
	p.Query = r.FormValue("query")
	p.OperationName = r.FormValue("operationName")
	return decodeVariables(r.FormValue("variables"), p)
}

func decodeVariables(raw string, p *Params) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &p.Variables); err != nil {
		return errors.New("variables are not valid JSON")
	}
	return nil
}
