package models

// Event types pushed over the pub/sub channels. Delivery is best-effort:
// clients that miss one resynchronize through the status endpoint.
const (
	EventQueueMove      = "QUEUE_MOVE"
	EventActive         = "ACTIVE"
	EventQueueClosed    = "QUEUE_CLOSED"
	EventSessionExpired = "SESSION_EXPIRED"
)

// QueueMoveEvent is broadcast on the scope's public channel whenever the
// line advances. Seq is monotonic per scope so subscribers can detect gaps.
type QueueMoveEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`
}

// ActiveEvent is delivered only on the promoted member's private channel.
type ActiveEvent struct {
	Type      string `json:"type"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type QueueClosedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type SessionExpiredEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewQueueMove(seq int64) QueueMoveEvent {
	return QueueMoveEvent{Type: EventQueueMove, Seq: seq}
}

func NewActive(token string, expiresAt int64) ActiveEvent {
	return ActiveEvent{Type: EventActive, Token: token, ExpiresAt: expiresAt}
}

func NewQueueClosed(message string) QueueClosedEvent {
	return QueueClosedEvent{Type: EventQueueClosed, Message: message}
}

func NewSessionExpired(message string) SessionExpiredEvent {
	return SessionExpiredEvent{Type: EventSessionExpired, Message: message}
}
