package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"seat-waitroom/internal/status"
	"seat-waitroom/models"
	"seat-waitroom/services"
)

type QueueHandler struct {
	app          *pocketbase.PocketBase
	queueService *services.QueueService
}

func NewQueueHandler(app *pocketbase.PocketBase, queueService *services.QueueService) *QueueHandler {
	return &QueueHandler{
		app:          app,
		queueService: queueService,
	}
}

// Join - enter the waiting line for a scope
func (h *QueueHandler) Join(e *core.RequestEvent) error {
	var req struct {
		ScopeID     string `json:"scope_id"`
		MemberID    string `json:"member_id"`
		UserID      string `json:"user_id"`
		SessionID   string `json:"session_id"`
		DisplayName string `json:"display_name"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid_request", err)
	}

	memberID := req.MemberID
	if memberID == "" && req.UserID != "" && req.SessionID != "" {
		memberID = models.MemberID(req.UserID, req.SessionID)
	}
	if req.ScopeID == "" || memberID == "" {
		return apis.NewBadRequestError("missing_fields", nil)
	}

	if err := h.scheduleExists(req.ScopeID); err != nil {
		return err
	}

	result, err := h.queueService.Join(e.Request.Context(), req.ScopeID, memberID, req.DisplayName)
	switch {
	case errors.Is(err, status.ErrAlreadyQueued):
		return apis.NewBadRequestError("already_queued", nil)
	case errors.Is(err, status.ErrMissingFields):
		return apis.NewBadRequestError("missing_fields", nil)
	case err != nil:
		return apis.NewBadRequestError("Failed to join queue", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"member_id": memberID,
		"rank":      result.Rank,
		"eta_ms":    result.EtaMS,
	})
}

// Heartbeat - periodic check-in; returns the caller's current state
func (h *QueueHandler) Heartbeat(e *core.RequestEvent) error {
	var req struct {
		ScopeID  string `json:"scope_id"`
		MemberID string `json:"member_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid_request", err)
	}

	result, err := h.queueService.Heartbeat(e.Request.Context(), req.ScopeID, req.MemberID)
	switch {
	case errors.Is(err, status.ErrMissingFields):
		return apis.NewBadRequestError("missing_fields", nil)
	case err != nil:
		return apis.NewBadRequestError("Heartbeat failed", err)
	}

	return e.JSON(http.StatusOK, result)
}

// Status - pull-style resync; the source of truth when push events are lost
func (h *QueueHandler) Status(e *core.RequestEvent) error {
	scopeID := e.Request.URL.Query().Get("scope_id")
	memberID := e.Request.URL.Query().Get("member_id")

	result, err := h.queueService.Status(e.Request.Context(), scopeID, memberID)
	switch {
	case errors.Is(err, status.ErrMissingFields):
		return apis.NewBadRequestError("missing_fields", nil)
	case err != nil:
		return apis.NewBadRequestError("Status failed", err)
	}

	return e.JSON(http.StatusOK, result)
}

// Leave - give up the line position (or active slot) voluntarily
func (h *QueueHandler) Leave(e *core.RequestEvent) error {
	var req struct {
		ScopeID  string `json:"scope_id"`
		MemberID string `json:"member_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid_request", err)
	}

	err := h.queueService.Leave(e.Request.Context(), req.ScopeID, req.MemberID)
	switch {
	case errors.Is(err, status.ErrMissingFields):
		return apis.NewBadRequestError("missing_fields", nil)
	case err != nil:
		return apis.NewBadRequestError("Failed to leave queue", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ok": true})
}

// Complete - the active holder finished their seat selection
func (h *QueueHandler) Complete(e *core.RequestEvent) error {
	var req struct {
		ScopeID  string `json:"scope_id"`
		MemberID string `json:"member_id"`
		Token    string `json:"token"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid_request", err)
	}

	err := h.queueService.Complete(e.Request.Context(), req.ScopeID, req.MemberID, req.Token)
	switch {
	case errors.Is(err, status.ErrMissingFields):
		return apis.NewBadRequestError("missing_fields", nil)
	case errors.Is(err, status.ErrForbidden):
		return apis.NewForbiddenError("forbidden", nil)
	case err != nil:
		return apis.NewBadRequestError("Failed to complete session", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"ok": true})
}

// scheduleExists verifies the scope points at a real schedule record.
// The scope id is "<show>:<schedule>"; only the schedule part is checked,
// it already uniquely identifies the queue's resource.
func (h *QueueHandler) scheduleExists(scopeID string) error {
	parts := strings.SplitN(scopeID, ":", 2)
	scheduleID := parts[len(parts)-1]

	var id string
	err := h.app.DB().
		NewQuery("SELECT id FROM schedules WHERE id={:id} LIMIT 1").
		Bind(dbx.Params{"id": scheduleID}).
		Row(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return apis.NewNotFoundError("unknown_schedule", nil)
	}
	if err != nil {
		return apis.NewBadRequestError("Failed to look up schedule", err)
	}
	return nil
}
