package services

import (
	"context"
	"log"

	"seat-waitroom/models"
)

// Liveness model: every heartbeat writes the member's timestamp into the
// presence sorted set. A member whose last heartbeat is older than the
// staleness window is "not live". Members near the front of the line who
// go stale get a ghost marker with an eviction deadline; a heartbeat
// before the deadline clears the marker, the deadline passing evicts the
// member from the line entirely.

// pruneGhosts evicts every member whose ghost deadline has passed.
func (s *QueueService) pruneGhosts(ctx context.Context, scope string, now int64) error {
	overdue, err := s.store.ZRangeByScoreMax(ctx, ghostKey(scope), now)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		return nil
	}

	for _, memberID := range overdue {
		if err := s.store.ZRem(ctx, ghostKey(scope), memberID); err != nil {
			return err
		}
		if err := s.store.ZRem(ctx, lineKey(scope), memberID); err != nil {
			return err
		}
		if err := s.store.ZRem(ctx, presenceKey(scope), memberID); err != nil {
			return err
		}
		if err := s.store.Del(ctx, ticketKey(scope, memberID)); err != nil {
			return err
		}
		log.Printf("Evicted ghost %s from scope %s", memberID, scope)
		s.monitor.TrackQueueOperation("evict", scope, "success")
	}

	// Positions behind the evicted members just advanced.
	if seq, err := s.store.Incr(ctx, eventSeqKey(scope)); err == nil {
		s.publisher.PublishPublic(ctx, scope, models.NewQueueMove(seq))
	}

	return nil
}

// reconcileFront walks the first FrontWindow members of the line: stale
// ones get a ghost marker (deadline = now + grace) if they don't already
// have one, live ones get any marker cleared. Only the front slice is
// checked so one heartbeat never scans a ten-thousand-member line.
func (s *QueueService) reconcileFront(ctx context.Context, scope string, now int64) error {
	front, err := s.store.ZRange(ctx, lineKey(scope), 0, int64(s.config.FrontWindow)-1)
	if err != nil {
		return err
	}

	staleBefore := now - s.config.PresenceStale.Milliseconds()

	for _, memberID := range front {
		lastSeen, present, err := s.store.ZScore(ctx, presenceKey(scope), memberID)
		if err != nil {
			return err
		}

		if present && int64(lastSeen) > staleBefore {
			if err := s.store.ZRem(ctx, ghostKey(scope), memberID); err != nil {
				return err
			}
			continue
		}

		deadline := now + s.config.GhostGrace.Milliseconds()
		if _, err := s.store.ZAddNX(ctx, ghostKey(scope), float64(deadline), memberID); err != nil {
			return err
		}
	}

	return nil
}

// prunePresence drops heartbeat records that have been stale for two full
// windows; by then the member is either ghosted or long gone, and keeping
// the record would only grow the set unboundedly.
func (s *QueueService) prunePresence(ctx context.Context, scope string, now int64) {
	cutoff := now - 2*s.config.PresenceStale.Milliseconds()
	stale, err := s.store.ZRangeByScoreMax(ctx, presenceKey(scope), cutoff)
	if err != nil || len(stale) == 0 {
		return
	}
	if err := s.store.ZRem(ctx, presenceKey(scope), stale...); err != nil {
		log.Printf("Error pruning presence for scope %s: %v", scope, err)
	}
}

// liveCount is how many members heartbeated within the staleness window.
func (s *QueueService) liveCount(ctx context.Context, scope string, now int64) (int64, error) {
	return s.store.ZCountMin(ctx, presenceKey(scope), now-s.config.PresenceStale.Milliseconds())
}
