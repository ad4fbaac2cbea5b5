// Package httptransport exposes the service over HTTP: the chat webhook,
// the JWT-gated operator endpoints, and the usual health/metrics plumbing.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fixdesk/internal/jwtauth"
	partymodels "fixdesk/internal/party/models"
	"fixdesk/internal/report"
	"fixdesk/internal/transport/bot"
	dErrors "fixdesk/pkg/domain-errors"
	"fixdesk/pkg/platform/httputil"
)

// EventHandler answers inbound chat events; the bot dispatcher satisfies it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev bot.Event) (*bot.Reply, error)
}

type Reporter interface {
	BuildRange(ctx context.Context, from, to time.Time) (*report.Summary, error)
}

type Promoter interface {
	PromoteToAdmin(ctx context.Context, actingPrincipal, principalID int64, fullName string) (*partymodels.Party, error)
}

type TokenValidator interface {
	ValidateToken(tokenString string) (*jwtauth.Claims, error)
}

// Handler is the thin HTTP layer; it delegates to the dispatcher and the
// domain services without embedding business logic.
type Handler struct {
	events   EventHandler
	reports  Reporter
	promoter Promoter
	tokens   TokenValidator
	logger   *slog.Logger
}

func NewHandler(events EventHandler, reports Reporter, promoter Promoter, tokens TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		events:   events,
		reports:  reports,
		promoter: promoter,
		tokens:   tokens,
		logger:   logger,
	}
}

// NewRouter wires all endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/bot/events", h.HandleBotEvent)

	r.Group(func(r chi.Router) {
		r.Use(h.requireOperatorToken)
		r.Post("/ops/report", h.HandleReport)
		r.Post("/ops/promote", h.HandlePromote)
	})
	return r
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleBotEvent handles POST /bot/events: one inbound chat update in, one
// structured reply out.
func (h *Handler) HandleBotEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ev, ok := httputil.Decode[bot.Event](w, r, h.logger)
	if !ok {
		return
	}
	if ev.PrincipalID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "principal_id must be positive"))
		return
	}
	reply, err := h.events.HandleEvent(ctx, ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "bot event failed",
			slog.Int64("principal_id", ev.PrincipalID),
			slog.String("error", err.Error()))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reply)
}

type reportRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleReport handles POST /ops/report. Dates are inclusive calendar days.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[reportRequest](w, r, h.logger)
	if !ok {
		return
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "from must be a YYYY-MM-DD date"))
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "to must be a YYYY-MM-DD date"))
		return
	}
	// Inclusive end-of-day bound.
	summary, err := h.reports.BuildRange(ctx, from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

type promoteRequest struct {
	PrincipalID int64  `json:"principal_id"`
	FullName    string `json:"full_name"`
}

// HandlePromote handles POST /ops/promote, the bootstrap path for the first
// admins. The party service still enforces the allow-list; the token only
// proves the caller is an operator.
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[promoteRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.PrincipalID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "principal_id must be positive"))
		return
	}
	party, err := h.promoter.PromoteToAdmin(ctx, req.PrincipalID, req.PrincipalID, req.FullName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "principal promoted to admin",
		slog.Int64("principal_id", req.PrincipalID))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"party_id":  party.ID.String(),
		"full_name": party.FullName,
		"role":      string(party.Role),
	})
}

func (h *Handler) requireOperatorToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token required"))
			return
		}
		if _, err := h.tokens.ValidateToken(token); err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
