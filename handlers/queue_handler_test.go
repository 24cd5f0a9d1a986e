package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"seat-waitroom/config"
	"seat-waitroom/monitoring"
	"seat-waitroom/services"
)

// These tests cover the request validation edges that never reach the
// store; full queue behavior is exercised in the services package
// against an in-memory Redis.

func newTestEvent(method, url, body string) *core.RequestEvent {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = httptest.NewRecorder()
	return e
}

func newTestQueueHandler() *QueueHandler {
	cfg := config.LoadConfig()
	service := services.NewQueueService(nil, nil, services.NopPublisher{}, cfg, monitoring.NewMonitor())
	return &QueueHandler{app: nil, queueService: service}
}

func TestQueueHandler_Join_MissingFields(t *testing.T) {
	handler := newTestQueueHandler()

	e := newTestEvent(http.MethodPost, "/api/waitroom/join", `{}`)
	err := handler.Join(e)

	assert.Error(t, err)
}

func TestQueueHandler_Join_DerivesMemberFromUserAndSession(t *testing.T) {
	handler := newTestQueueHandler()

	// user_id without session_id is not enough to derive a member id.
	e := newTestEvent(http.MethodPost, "/api/waitroom/join", `{"scope_id":"s1:d1","user_id":"u1"}`)
	err := handler.Join(e)

	assert.Error(t, err)
}

func TestQueueHandler_Heartbeat_MissingFields(t *testing.T) {
	handler := newTestQueueHandler()

	e := newTestEvent(http.MethodPost, "/api/waitroom/heartbeat", `{"scope_id":"s1:d1"}`)
	err := handler.Heartbeat(e)

	assert.Error(t, err)
}

func TestQueueHandler_Status_MissingQueryParams(t *testing.T) {
	handler := newTestQueueHandler()

	e := newTestEvent(http.MethodGet, "/api/waitroom/status", "")
	err := handler.Status(e)

	assert.Error(t, err)
}

func TestQueueHandler_Complete_MissingToken(t *testing.T) {
	handler := newTestQueueHandler()

	e := newTestEvent(http.MethodPost, "/api/waitroom/complete", `{"scope_id":"s1:d1","member_id":"m1"}`)
	err := handler.Complete(e)

	assert.Error(t, err)
}

func TestQueueHandler_Leave_MissingFields(t *testing.T) {
	handler := newTestQueueHandler()

	e := newTestEvent(http.MethodPost, "/api/waitroom/leave", `{"member_id":"m1"}`)
	err := handler.Leave(e)

	assert.Error(t, err)
}

func newTestAdminHandler(t *testing.T, adminKey string) *AdminHandler {
	t.Helper()

	cfg := config.LoadConfig()
	if adminKey != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.AdminKeyHash = string(hash)
	} else {
		cfg.AdminKeyHash = ""
	}

	service := services.NewQueueService(nil, nil, services.NopPublisher{}, cfg, monitoring.NewMonitor())
	return &AdminHandler{app: nil, queueService: service, config: cfg}
}

func TestAdminHandler_Terminate_NoHashConfigured(t *testing.T) {
	handler := newTestAdminHandler(t, "")

	e := newTestEvent(http.MethodPost, "/api/admin/waitroom/terminate", `{}`)
	err := handler.Terminate(e)

	assert.Error(t, err)
}

func TestAdminHandler_Terminate_MissingKey(t *testing.T) {
	handler := newTestAdminHandler(t, "hunter2")

	e := newTestEvent(http.MethodPost, "/api/admin/waitroom/terminate", `{}`)
	err := handler.Terminate(e)

	assert.Error(t, err)
}

func TestAdminHandler_Terminate_WrongKey(t *testing.T) {
	handler := newTestAdminHandler(t, "hunter2")

	e := newTestEvent(http.MethodPost, "/api/admin/waitroom/terminate", `{}`)
	e.Request.Header.Set("X-Admin-Key", "wrong")
	err := handler.Terminate(e)

	assert.Error(t, err)
}

func TestAdminHandler_Terminate_ValidKeyMissingBody(t *testing.T) {
	handler := newTestAdminHandler(t, "hunter2")

	// Auth passes, then the empty body fails field validation.
	e := newTestEvent(http.MethodPost, "/api/admin/waitroom/terminate", `{}`)
	e.Request.Header.Set("X-Admin-Key", "hunter2")
	err := handler.Terminate(e)

	assert.Error(t, err)
}

func TestAdminHandler_Pause_MissingScope(t *testing.T) {
	handler := newTestAdminHandler(t, "hunter2")

	e := newTestEvent(http.MethodPost, "/api/admin/waitroom/pause", `{}`)
	e.Request.Header.Set("X-Admin-Key", "hunter2")
	err := handler.Pause(e)

	assert.Error(t, err)
}
