package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"db-local-sync/internal/confirm"
	"db-local-sync/internal/logger"
	"db-local-sync/internal/store"
	"db-local-sync/internal/sync"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Syncer is the part of the orchestrator the API drives.
type Syncer interface {
	RunCycle(ctx context.Context) (sync.Outcome, error)
	Status() sync.Status
}

// Approver resolves prompts raised through the API confirmation gate.
type Approver interface {
	Pending() []confirm.Prompt
	Resolve(id string, d confirm.Decision) error
}

type HistoryReader interface {
	GetSyncHistory(ctx context.Context, limit, offset int) ([]*store.SyncHistory, error)
}

type Handler struct {
	syncer   Syncer
	approver Approver
	history  HistoryReader

	authToken   string
	corsOrigins []string
}

type Option func(*Handler)

// WithApprover exposes the pending confirmation endpoints.
func WithApprover(a Approver) Option {
	return func(h *Handler) { h.approver = a }
}

func WithHistory(r HistoryReader) Option {
	return func(h *Handler) { h.history = r }
}

// WithAuthToken requires "Authorization: Bearer <token>" on /api/v1.
func WithAuthToken(token string) Option {
	return func(h *Handler) { h.authToken = token }
}

func WithCorsOrigins(origins []string) Option {
	return func(h *Handler) { h.corsOrigins = origins }
}

func NewHandler(syncer Syncer, opts ...Option) *Handler {
	h := &Handler{syncer: syncer}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware(h.corsOrigins))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(h.authToken))

		r.Post("/sync/trigger", h.TriggerSync)
		r.Get("/sync/status", h.GetSyncStatus)
		r.Get("/sync/pending", h.ListPending)
		r.Post("/sync/pending/{id}/approve", h.resolve(confirm.Approved))
		r.Post("/sync/pending/{id}/ignore", h.resolve(confirm.Ignored))
		r.Get("/sync/history", h.GetSyncHistory)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// TriggerSync runs a cycle now. A divergence answers 202 with the cycle left
// waiting on the gate.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	// The cycle outlives a client that hangs up mid-fetch.
	outcome, err := h.syncer.RunCycle(context.WithoutCancel(r.Context()))

	resp := map[string]string{"outcome": string(outcome)}
	switch {
	case err != nil:
		resp["error"] = err.Error()
		resp["kind"] = sync.Kind(err)
		writeJSON(w, http.StatusBadGateway, resp)
	case outcome == sync.OutcomeSkipped:
		writeJSON(w, http.StatusConflict, resp)
	case outcome == sync.OutcomeAwaitingConfirmation:
		writeJSON(w, http.StatusAccepted, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.syncer.Status())
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	if h.approver == nil {
		writeError(w, http.StatusNotFound, "confirmations are not handled over the API")
		return
	}
	pending := h.approver.Pending()
	if pending == nil {
		pending = []confirm.Prompt{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *Handler) resolve(d confirm.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.approver == nil {
			writeError(w, http.StatusNotFound, "confirmations are not handled over the API")
			return
		}

		id := chi.URLParam(r, "id")
		if err := h.approver.Resolve(id, d); err != nil {
			if errors.Is(err, confirm.ErrUnknownPrompt) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logger.Log.Info("Confirmation resolved over API", zap.String("prompt_id", id), zap.Stringer("decision", d))
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "decision": d.String()})
	}
}

func (h *Handler) GetSyncHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "state storage is disabled")
		return
	}

	limit, err := intParam(r, "limit", defaultHistoryLimit)
	if err != nil || limit <= 0 || limit > maxHistoryLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must not be negative")
		return
	}

	history, err := h.history.GetSyncHistory(r.Context(), limit, offset)
	if err != nil {
		logger.Log.Error("Failed to read sync history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read sync history")
		return
	}
	if history == nil {
		history = []*store.SyncHistory{}
	}
	writeJSON(w, http.StatusOK, history)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
