package services

import (
	"context"
	"log"
	"log/slog"

	"seat-waitroom/models"
	"seat-waitroom/utils"
)

// TryAdmit makes at most one promotion decision for the scope: under the
// short-TTL promotion lock it checks the slot is free, skips orphaned
// entries, and moves the head of the line into the active hold. Losing
// the lock race is not an error; some other invocation is deciding and
// the next heartbeat will retry anyway. Returns whether a member was
// promoted.
func (s *QueueService) TryAdmit(ctx context.Context, scope string) (bool, error) {
	lockToken, ok, err := s.locker.TryAcquire(ctx, scope, s.config.PromotionLockTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer func() {
		if err := s.locker.Release(ctx, scope, lockToken); err != nil {
			slog.Warn("promotion lock release failed", "scope", scope, "error", err)
		}
	}()

	now := nowMS()

	if paused, err := s.isPaused(ctx, scope); err != nil {
		return false, err
	} else if paused {
		return false, nil
	}

	sess, err := s.getActiveSession(ctx, scope)
	if err != nil {
		return false, err
	}
	if sess != nil {
		if !sess.Expired(now) {
			// Single-slot invariant: someone is already admitted.
			return false, nil
		}
		if err := s.expireActiveSession(ctx, scope, sess); err != nil {
			return false, err
		}
	}

	// Re-prune under the lock: a ghost may have expired between the
	// caller's prune and lock acquisition.
	if err := s.pruneGhosts(ctx, scope, now); err != nil {
		return false, err
	}

	for attempt := 0; attempt < s.config.OrphanRetryLimit; attempt++ {
		head, err := s.store.ZRange(ctx, lineKey(scope), 0, 0)
		if err != nil {
			return false, err
		}
		if len(head) == 0 {
			return false, nil
		}
		memberID := head[0]

		ticket, err := s.store.HGetAll(ctx, ticketKey(scope, memberID))
		if err != nil {
			return false, err
		}
		if len(ticket) == 0 {
			// Line entry without metadata: the ticket expired or the
			// join was half-written. Drop it and look at the next head.
			if err := s.store.ZRem(ctx, lineKey(scope), memberID); err != nil {
				return false, err
			}
			s.monitor.TrackQueueOperation("skip_orphan", scope, "success")
			continue
		}

		return true, s.promote(ctx, scope, memberID, now)
	}

	log.Printf("Orphan retry limit hit for scope %s, giving up this pass", scope)
	s.monitor.TrackQueueOperation("admit", scope, "retry_exhausted")
	return false, nil
}

func (s *QueueService) promote(ctx context.Context, scope, memberID string, now int64) error {
	token, err := utils.GenerateToken(24)
	if err != nil {
		return err
	}

	expiresAt := now + s.config.HoldDuration.Milliseconds()
	fields := map[string]any{
		"member_id":  memberID,
		"token":      token,
		"started_at": now,
		"expires_at": expiresAt,
	}
	if err := s.store.HSet(ctx, activeKey(scope), fields); err != nil {
		return err
	}
	// Defensive auto-expiry: even if every later cleanup is missed, the
	// hold frees itself.
	if err := s.store.Expire(ctx, activeKey(scope), s.config.HoldDuration); err != nil {
		return err
	}

	if err := s.store.ZRem(ctx, lineKey(scope), memberID); err != nil {
		return err
	}
	if err := s.store.ZRem(ctx, ghostKey(scope), memberID); err != nil {
		return err
	}

	seq, err := s.store.Incr(ctx, eventSeqKey(scope))
	if err == nil {
		s.publisher.PublishPublic(ctx, scope, models.NewQueueMove(seq))
	}
	s.publisher.PublishMember(ctx, scope, memberID, models.NewActive(token, expiresAt))

	s.monitor.TrackQueueOperation("promote", scope, "success")
	log.Printf("Promoted member %s to active slot for scope %s", memberID, scope)
	return nil
}
