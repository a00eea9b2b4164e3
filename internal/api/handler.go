package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/engine"
)

// Engine is the reminder pipeline the handlers trigger.
type Engine interface {
	RunReminders(ctx context.Context, limit int) (*engine.ReminderSummary, error)
	RunOutbox(ctx context.Context, opts engine.OutboxOptions) (*engine.OutboxSummary, error)
	PendingCount(ctx context.Context, userID uuid.UUID) (int, error)
	CleanupTask(ctx context.Context, taskID uuid.UUID) (*engine.CleanupResult, error)
}

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// PendingResponse is returned by the pending count endpoint.
type PendingResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Pending int       `json:"pending"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger *zap.Logger
	engine Engine
	health HealthChecker
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, e Engine, health HealthChecker) *Handler {
	return &Handler{
		logger: logger,
		engine: e,
		health: health,
	}
}

// Routes mounts the trigger endpoints. Callers add auth and rate limiting
// with the returned router's middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/reminders/run", h.RunReminders)
	r.Post("/outbox/run", h.RunOutbox)
	r.Get("/users/{id}/reminders/pending", h.PendingCount)
	r.Delete("/tasks/{id}/reminders", h.CleanupTask)
}

// RunReminders handles POST /v1/reminders/run?limit=
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	summary, err := h.engine.RunReminders(r.Context(), limit)
	if err != nil {
		h.logger.Error("reminders run failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "run_failed", "Reminders run failed", err.Error())
		return
	}

	h.logger.Info("reminders run completed",
		zap.Int("processed_settings", summary.ProcessedSettings),
		zap.Int("processed_queue", summary.ProcessedQueue),
	)
	h.writeJSON(w, http.StatusOK, summary)
}

// RunOutbox handles POST /v1/outbox/run?limit=&emails=&sms=
func (h *Handler) RunOutbox(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.parseLimit(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := engine.OutboxOptions{
		Limit:  limit,
		Emails: flag(q.Get("emails")),
		SMS:    flag(q.Get("sms")),
	}

	summary, err := h.engine.RunOutbox(r.Context(), opts)
	if err != nil {
		h.logger.Error("outbox run failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "run_failed", "Outbox run failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// PendingCount handles GET /v1/users/{id}/reminders/pending
func (h *Handler) PendingCount(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user ID", "ID must be a valid UUID")
		return
	}

	n, err := h.engine.PendingCount(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to count pending reminders", zap.Error(err), zap.String("user_id", userID.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to count pending reminders", "")
		return
	}

	h.writeJSON(w, http.StatusOK, PendingResponse{UserID: userID, Pending: n})
}

// CleanupTask handles DELETE /v1/tasks/{id}/reminders
func (h *Handler) CleanupTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid task ID", "ID must be a valid UUID")
		return
	}

	result, err := h.engine.CleanupTask(r.Context(), taskID)
	if err != nil {
		h.logger.Error("task cleanup failed", zap.Error(err), zap.String("task_id", taskID.String()))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to clean up task reminders", "")
		return
	}

	h.logger.Info("task reminders cleaned up",
		zap.String("task_id", taskID.String()),
		zap.Int64("deleted_entries", result.DeletedEntries),
		zap.Int64("deactivated_settings", result.DeactivatedSettings),
	)
	h.writeJSON(w, http.StatusOK, result)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			h.writeError(w, http.StatusServiceUnavailable, "unhealthy", "Database unavailable", "")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// parseLimit reads an optional positive limit. Zero means the job default.
func (h *Handler) parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid limit", "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

// flag treats anything but an explicit "0" or "false" as enabled.
func flag(v string) bool {
	return v != "0" && v != "false"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	writeProblem(w, status, errType, title, detail)
}

func writeProblem(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
