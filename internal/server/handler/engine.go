package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/engine"
)

// EngineControl is the part of the engine the API exposes.
type EngineControl interface {
	Status() engine.Status
	Stats() domain.LedgerStats
	Opportunities() []domain.Opportunity
	RecentFlips(ctx context.Context, limit int) ([]domain.CompletedFlip, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ResetSession()
}

// EngineHandler serves status, statistics and engine control.
type EngineHandler struct {
	engine EngineControl
	logger *slog.Logger
}

// NewEngineHandler creates handlers backed by e.
func NewEngineHandler(e EngineControl, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{engine: e, logger: logHandler(logger, "engine")}
}

// GetStatus answers GET /api/status.
func (h *EngineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// GetStats answers GET /api/stats.
func (h *EngineHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

// ListOrders answers GET /api/orders with the active orders.
func (h *EngineHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.engine.Status().Orders
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"count":  len(orders),
	})
}

// ListOpportunities answers GET /api/opportunities with the latest scan.
func (h *EngineHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opps := h.engine.Opportunities()
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
	})
}

// ListFlips answers GET /api/flips?limit=N.
func (h *EngineHandler) ListFlips(w http.ResponseWriter, r *http.Request) {
	flips, err := h.engine.RecentFlips(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list flips failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list flips")
		return
	}
	if flips == nil {
		flips = []domain.CompletedFlip{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"flips": flips,
		"count": len(flips),
	})
}

// Start answers POST /api/engine/start.
func (h *EngineHandler) Start(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Start(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.engine.Status())
	case errors.Is(err, domain.ErrEngineRunning):
		writeError(w, http.StatusConflict, "engine already running")
	case errors.Is(err, domain.ErrPurseTooLow):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "start failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to start engine")
	}
}

// Stop answers POST /api/engine/stop.
func (h *EngineHandler) Stop(w http.ResponseWriter, r *http.Request) {
	err := h.engine.Stop(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.engine.Status())
	case errors.Is(err, domain.ErrEngineStopped):
		writeError(w, http.StatusConflict, "engine not running")
	default:
		h.logger.ErrorContext(r.Context(), "stop failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to stop engine")
	}
}

// ResetSession answers POST /api/stats/reset-session.
func (h *EngineHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.engine.ResetSession()
	writeJSON(w, http.StatusOK, h.engine.Stats())
}
