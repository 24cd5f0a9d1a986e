package services

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"seat-waitroom/config"
	"seat-waitroom/internal/status"
	"seat-waitroom/models"
	"seat-waitroom/monitoring"
)

// QueueService coordinates one virtual waiting line per scope: FIFO
// ordering of joiners, liveness tracking, ghost eviction, and promotion
// of the head of the line into the single seat-selection slot. Every
// method is a stateless invocation; all shared state lives in the Store.
type QueueService struct {
	store     Store
	locker    Locker
	publisher Publisher
	config    *config.Config
	monitor   *monitoring.Monitor
}

func NewQueueService(store Store, locker Locker, publisher Publisher, cfg *config.Config, monitor *monitoring.Monitor) *QueueService {
	return &QueueService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		config:    cfg,
		monitor:   monitor,
	}
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}

// Join inserts a member at the tail of the scope's line and reports the
// assigned 1-based rank plus an estimated wait. Rejoining while a valid
// line entry or hold exists is rejected; a half-written (orphaned) prior
// entry is cleared and the join proceeds.
func (s *QueueService) Join(ctx context.Context, scope, memberID, displayName string) (*models.JoinResult, error) {
	if scope == "" || memberID == "" {
		return nil, status.ErrMissingFields
	}

	now := nowMS()

	sess, err := s.getActiveSession(ctx, scope)
	if err != nil {
		return nil, err
	}
	if sess != nil && sess.MemberID == memberID && !sess.Expired(now) {
		return nil, status.ErrAlreadyQueued
	}

	_, inLine, err := s.store.ZScore(ctx, lineKey(scope), memberID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.store.HGetAll(ctx, ticketKey(scope, memberID))
	if err != nil {
		return nil, err
	}
	hasTicket := len(ticket) > 0

	if inLine && hasTicket {
		return nil, status.ErrAlreadyQueued
	}
	if inLine || hasTicket {
		// Orphaned remnant of an earlier join: clear it and continue.
		if err := s.store.ZRem(ctx, lineKey(scope), memberID); err != nil {
			return nil, err
		}
		if err := s.store.Del(ctx, ticketKey(scope, memberID)); err != nil {
			return nil, err
		}
	}

	seq, err := s.store.Incr(ctx, seqKey(scope))
	if err != nil {
		return nil, err
	}

	if err := s.store.ZAdd(ctx, lineKey(scope), float64(seq), memberID); err != nil {
		return nil, err
	}
	fields := map[string]any{
		"ticket_id":    uuid.NewString(),
		"member_id":    memberID,
		"display_name": displayName,
		"joined_at":    now,
		"seq":          seq,
	}
	if err := s.store.HSet(ctx, ticketKey(scope, memberID), fields); err != nil {
		return nil, err
	}
	if err := s.store.Expire(ctx, ticketKey(scope, memberID), s.config.TicketTTL); err != nil {
		return nil, err
	}
	if err := s.store.ZAdd(ctx, presenceKey(scope), float64(now), memberID); err != nil {
		return nil, err
	}

	rank, err := s.rankOf(ctx, scope, memberID)
	if err != nil {
		return nil, err
	}

	s.monitor.TrackQueueOperation("join", scope, "success")

	// A join into an empty line may admit instantly.
	if _, err := s.TryAdmit(ctx, scope); err != nil {
		slog.Warn("admission attempt after join failed", "scope", scope, "error", err)
	}

	return &models.JoinResult{
		Rank:  rank,
		EtaMS: rank * s.avgServiceMS(ctx, scope),
	}, nil
}

// Leave removes the member from the line, ghost markers and presence
// unconditionally. If the member held the active slot, the hold is
// released and the next member is admitted.
func (s *QueueService) Leave(ctx context.Context, scope, memberID string) error {
	if scope == "" || memberID == "" {
		return status.ErrMissingFields
	}

	if err := s.store.ZRem(ctx, lineKey(scope), memberID); err != nil {
		return err
	}
	if err := s.store.ZRem(ctx, ghostKey(scope), memberID); err != nil {
		return err
	}
	if err := s.store.ZRem(ctx, presenceKey(scope), memberID); err != nil {
		return err
	}
	if err := s.store.Del(ctx, ticketKey(scope, memberID)); err != nil {
		return err
	}

	sess, err := s.getActiveSession(ctx, scope)
	if err != nil {
		return err
	}
	if sess != nil && sess.MemberID == memberID {
		if err := s.store.Del(ctx, activeKey(scope)); err != nil {
			return err
		}
		if _, err := s.TryAdmit(ctx, scope); err != nil {
			slog.Warn("admission attempt after leave failed", "scope", scope, "error", err)
		}
	}

	s.monitor.TrackQueueOperation("leave", scope, "success")
	return nil
}

// Heartbeat is the periodic check-in from a waiting or active client.
// It refreshes presence, evicts overdue ghosts, reconciles liveness for
// the front of the line and reports the caller's current state.
func (s *QueueService) Heartbeat(ctx context.Context, scope, memberID string) (*models.HeartbeatResult, error) {
	return s.observe(ctx, scope, memberID, true)
}

// Status is the read-side twin of Heartbeat: the source of truth clients
// fall back to when push events are lost. It does not refresh presence.
func (s *QueueService) Status(ctx context.Context, scope, memberID string) (*models.HeartbeatResult, error) {
	res, err := s.observe(ctx, scope, memberID, false)
	if err != nil {
		return nil, err
	}
	if res.State == models.StateIdle {
		res.State = models.StateNotJoined
	}
	return res, nil
}

func (s *QueueService) observe(ctx context.Context, scope, memberID string, touch bool) (*models.HeartbeatResult, error) {
	if scope == "" || memberID == "" {
		return nil, status.ErrMissingFields
	}

	now := nowMS()

	if touch {
		if err := s.store.ZAdd(ctx, presenceKey(scope), float64(now), memberID); err != nil {
			return nil, err
		}
	}

	if err := s.pruneGhosts(ctx, scope, now); err != nil {
		return nil, err
	}
	if touch {
		if err := s.reconcileFront(ctx, scope, now); err != nil {
			return nil, err
		}
		s.prunePresence(ctx, scope, now)
	}

	live, err := s.liveCount(ctx, scope, now)
	if err != nil {
		return nil, err
	}

	// A lapsed hold discovered here is cleared and the line advanced
	// before the caller's state is computed.
	expiredHolder := false
	sess, err := s.getActiveSession(ctx, scope)
	if err != nil {
		return nil, err
	}
	if sess != nil && sess.Expired(now) {
		expiredHolder = sess.MemberID == memberID
		if err := s.expireActiveSession(ctx, scope, sess); err != nil {
			return nil, err
		}
		if _, err := s.TryAdmit(ctx, scope); err != nil {
			slog.Warn("admission attempt after hold expiry failed", "scope", scope, "error", err)
		}
		sess = nil
	}

	if expiredHolder {
		return &models.HeartbeatResult{State: models.StateExpired, LiveCount: live}, nil
	}

	if sess != nil && sess.MemberID == memberID {
		return &models.HeartbeatResult{
			State:     models.StateActive,
			MsLeft:    sess.ExpiresAt - now,
			LiveCount: live,
		}, nil
	}

	paused, err := s.isPaused(ctx, scope)
	if err != nil {
		return nil, err
	}

	rank, queued, err := s.effectiveRank(ctx, scope, memberID)
	if err != nil {
		return nil, err
	}
	if !queued {
		// The member may have been promoted by the admission attempt above.
		sess, err = s.getActiveSession(ctx, scope)
		if err != nil {
			return nil, err
		}
		if sess != nil && sess.MemberID == memberID {
			return &models.HeartbeatResult{
				State:     models.StateActive,
				MsLeft:    sess.ExpiresAt - now,
				LiveCount: live,
			}, nil
		}
		return &models.HeartbeatResult{State: models.StateIdle, LiveCount: live}, nil
	}

	if paused {
		return &models.HeartbeatResult{State: models.StateClosed, Rank: rank, LiveCount: live}, nil
	}

	return &models.HeartbeatResult{
		State:     models.StateWaiting,
		Rank:      rank,
		EtaMS:     rank * s.avgServiceMS(ctx, scope),
		LiveCount: live,
	}, nil
}

// rankOf is the member's raw 1-based position in the line.
func (s *QueueService) rankOf(ctx context.Context, scope, memberID string) (int64, error) {
	idx, ok, err := s.store.ZRank(ctx, lineKey(scope), memberID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return idx + 1, nil
}

// effectiveRank excludes ghost-marked members ahead of the caller, so a
// disconnected front member in its grace period does not inflate ETAs.
func (s *QueueService) effectiveRank(ctx context.Context, scope, memberID string) (int64, bool, error) {
	idx, ok, err := s.store.ZRank(ctx, lineKey(scope), memberID)
	if err != nil || !ok {
		return 0, false, err
	}

	ghostsAhead := int64(0)
	if idx > 0 {
		ahead, err := s.store.ZRange(ctx, lineKey(scope), 0, idx-1)
		if err != nil {
			return 0, false, err
		}
		for _, m := range ahead {
			if _, ghosted, err := s.store.ZScore(ctx, ghostKey(scope), m); err != nil {
				return 0, false, err
			} else if ghosted {
				ghostsAhead++
			}
		}
	}

	return idx + 1 - ghostsAhead, true, nil
}

func (s *QueueService) isPaused(ctx context.Context, scope string) (bool, error) {
	_, paused, err := s.store.Get(ctx, pausedKey(scope))
	return paused, err
}

// Pause blocks all promotion for the scope until Resume.
func (s *QueueService) Pause(ctx context.Context, scope, message string) error {
	if scope == "" {
		return status.ErrMissingFields
	}
	if err := s.store.Set(ctx, pausedKey(scope), "1", 0); err != nil {
		return err
	}
	if message == "" {
		message = "The queue is temporarily closed."
	}
	s.publisher.PublishPublic(ctx, scope, models.NewQueueClosed(message))
	s.monitor.TrackQueueOperation("pause", scope, "success")
	return nil
}

// Resume reopens the scope and immediately tries to fill the slot.
func (s *QueueService) Resume(ctx context.Context, scope string) error {
	if scope == "" {
		return status.ErrMissingFields
	}
	if err := s.store.Del(ctx, pausedKey(scope)); err != nil {
		return err
	}
	if _, err := s.TryAdmit(ctx, scope); err != nil {
		slog.Warn("admission attempt after resume failed", "scope", scope, "error", err)
	}
	s.monitor.TrackQueueOperation("resume", scope, "success")
	return nil
}

// DashboardStats collects per-scope queue statistics for the admin view.
func (s *QueueService) DashboardStats(ctx context.Context) ([]models.ScopeStats, error) {
	now := nowMS()

	lineKeys, err := s.store.Keys(ctx, "wait:line:*")
	if err != nil {
		return nil, err
	}
	activeKeys, err := s.store.Keys(ctx, "wait:active:*")
	if err != nil {
		return nil, err
	}

	scopes := map[string]bool{}
	for _, k := range lineKeys {
		scopes[scopeFromLineKey(k)] = true
	}
	for _, k := range activeKeys {
		scopes[strings.TrimPrefix(k, "wait:active:")] = true
	}

	stats := make([]models.ScopeStats, 0, len(scopes))
	for scope := range scopes {
		waiting, err := s.store.ZCard(ctx, lineKey(scope))
		if err != nil {
			return nil, err
		}
		live, err := s.liveCount(ctx, scope, now)
		if err != nil {
			return nil, err
		}
		paused, err := s.isPaused(ctx, scope)
		if err != nil {
			return nil, err
		}

		row := models.ScopeStats{
			Scope:        scope,
			Waiting:      waiting,
			Live:         live,
			AvgServiceMS: float64(s.avgServiceMS(ctx, scope)),
			Paused:       paused,
		}
		if sess, err := s.getActiveSession(ctx, scope); err == nil && sess != nil && !sess.Expired(now) {
			row.ActiveMember = sess.MemberID
		}
		stats = append(stats, row)
	}

	return stats, nil
}

// avgServiceMS is the exponentially-weighted average service time for the
// scope, falling back to the configured default before any sample exists.
func (s *QueueService) avgServiceMS(ctx context.Context, scope string) int64 {
	val, ok, err := s.store.Get(ctx, metricKey(scope))
	if err != nil || !ok {
		return s.config.DefaultServiceTime.Milliseconds()
	}
	avg, err := strconv.ParseFloat(val, 64)
	if err != nil || avg <= 0 {
		return s.config.DefaultServiceTime.Milliseconds()
	}
	return int64(avg)
}

func (s *QueueService) recordServiceSample(ctx context.Context, scope string, elapsedMS int64) {
	minMS := s.config.MinServiceSample.Milliseconds()
	if elapsedMS < minMS {
		elapsedMS = minMS
	}

	old := float64(s.avgServiceMS(ctx, scope))
	next := old*0.9 + float64(elapsedMS)*0.1

	if err := s.store.Set(ctx, metricKey(scope), strconv.FormatFloat(next, 'f', -1, 64), 0); err != nil {
		slog.Warn("service metric update failed", "scope", scope, "error", err)
	}
}
