package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"

	"seat-waitroom/config"
	"seat-waitroom/internal/status"
	"seat-waitroom/services"
)

type AdminHandler struct {
	app          *pocketbase.PocketBase
	queueService *services.QueueService
	config       *config.Config
}

func NewAdminHandler(app *pocketbase.PocketBase, queueService *services.QueueService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		app:          app,
		queueService: queueService,
		config:       cfg,
	}
}

// requireAdmin checks the X-Admin-Key header against the configured
// bcrypt hash. With no hash configured every admin call is refused.
func (h *AdminHandler) requireAdmin(e *core.RequestEvent) error {
	if h.config.AdminKeyHash == "" {
		return apis.NewForbiddenError("Admin access not configured", nil)
	}
	key := e.Request.Header.Get("X-Admin-Key")
	if key == "" {
		return apis.NewUnauthorizedError("Admin key required", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.config.AdminKeyHash), []byte(key)); err != nil {
		return apis.NewForbiddenError("Invalid admin key", nil)
	}
	return nil
}

// Terminate - forcibly remove a member from the active slot or the line
func (h *AdminHandler) Terminate(e *core.RequestEvent) error {
	if err := h.requireAdmin(e); err != nil {
		return err
	}

	var req struct {
		ScopeID  string `json:"scope_id"`
		MemberID string `json:"member_id"`
		Token    string `json:"token"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid_request", err)
	}

	result, err := h.queueService.Terminate(e.Request.Context(), req.ScopeID, req.MemberID, req.Token)
	switch {
	case errors.Is(err, status.ErrMissingFields):
		return apis.NewBadRequestError("missing_fields", nil)
	case err != nil:
		return apis.NewBadRequestError("Failed to terminate", err)
	}

	return e.JSON(http.StatusOK, result)
}

// Pause - block all promotion for a scope
func (h *AdminHandler) Pause(e *core.RequestEvent) error {
	if err := h.requireAdmin(e); err != nil {
		return err
	}

	var req struct {
		ScopeID string `json:"scope_id"`
		Message string `json:"message"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid_request", err)
	}

	if err := h.queueService.Pause(e.Request.Context(), req.ScopeID, req.Message); err != nil {
		if errors.Is(err, status.ErrMissingFields) {
			return apis.NewBadRequestError("missing_fields", nil)
		}
		return apis.NewBadRequestError("Failed to pause scope", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ok": true})
}

// Resume - reopen a paused scope and refill the slot
func (h *AdminHandler) Resume(e *core.RequestEvent) error {
	if err := h.requireAdmin(e); err != nil {
		return err
	}

	var req struct {
		ScopeID string `json:"scope_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid_request", err)
	}

	if err := h.queueService.Resume(e.Request.Context(), req.ScopeID); err != nil {
		if errors.Is(err, status.ErrMissingFields) {
			return apis.NewBadRequestError("missing_fields", nil)
		}
		return apis.NewBadRequestError("Failed to resume scope", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ok": true})
}

// Dashboard - waiting/live/hold statistics across all scopes
func (h *AdminHandler) Dashboard(e *core.RequestEvent) error {
	if err := h.requireAdmin(e); err != nil {
		return err
	}

	stats, err := h.queueService.DashboardStats(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Failed to collect stats", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"scopes": stats})
}
