package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// QueueState is what a heartbeat or status call reports back to the client.
type QueueState string

const (
	StateIdle      QueueState = "idle"
	StateWaiting   QueueState = "waiting"
	StateActive    QueueState = "active"
	StateExpired   QueueState = "expired"
	StateClosed    QueueState = "closed"
	StateNotJoined QueueState = "not_joined"
)

// MemberID derives a stable queue identity from the caller's user and
// session ids, so repeated heartbeats from the same browser tab always
// resolve to the same line entry.
func MemberID(userID, sessionID string) string {
	sum := sha1.Sum([]byte(userID + ":" + sessionID))
	return hex.EncodeToString(sum[:16])
}

// Ticket is the per-member metadata stored alongside the line entry.
type Ticket struct {
	TicketID    string `json:"ticket_id"`
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name"`
	JoinedAt    int64  `json:"joined_at"` // ms since epoch
	Seq         int64  `json:"seq"`
}

// ActiveSession is the single admitted member's exclusive hold on the
// seat-selection slot. At most one non-expired instance exists per scope.
type ActiveSession struct {
	MemberID  string `json:"member_id"`
	Token     string `json:"token"`
	StartedAt int64  `json:"started_at"` // ms since epoch
	ExpiresAt int64  `json:"expires_at"` // ms since epoch
}

// Expired reports whether the hold has lapsed. Expiry is inclusive:
// expires_at <= now means expired.
func (a *ActiveSession) Expired(nowMS int64) bool {
	return a.ExpiresAt <= nowMS
}

type JoinResult struct {
	Rank  int64 `json:"rank"`
	EtaMS int64 `json:"eta_ms"`
}

// HeartbeatResult is the unified answer for both heartbeat and status calls.
type HeartbeatResult struct {
	State     QueueState `json:"state"`
	Rank      int64      `json:"rank,omitempty"`
	EtaMS     int64      `json:"eta_ms,omitempty"`
	MsLeft    int64      `json:"ms_left,omitempty"`
	LiveCount int64      `json:"live_count"`
}

type TerminateResult struct {
	Terminated bool `json:"terminated"`
	Promoted   bool `json:"promoted"`
}

// ScopeStats is the per-scope row on the admin dashboard.
type ScopeStats struct {
	Scope        string  `json:"scope"`
	Waiting      int64   `json:"waiting"`
	Live         int64   `json:"live"`
	ActiveMember string  `json:"active_member,omitempty"`
	AvgServiceMS float64 `json:"avg_service_ms"`
	Paused       bool    `json:"paused"`
}

func (s ScopeStats) String() string {
	return fmt.Sprintf("scope=%s waiting=%d live=%d paused=%v", s.Scope, s.Waiting, s.Live, s.Paused)
}
