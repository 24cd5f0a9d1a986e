package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"seat-waitroom/internal/status"
	"seat-waitroom/models"
)

// SessionCheck is the tagged outcome of validating a claimed hold.
type SessionCheck int

const (
	SessionValid SessionCheck = iota
	// SessionMissing: no hold recorded for the scope at all.
	SessionMissing
	// SessionTicketMismatch: the hold belongs to a different member.
	SessionTicketMismatch
	// SessionExpired: right member, but the hold has lapsed.
	SessionExpired
	// SessionTokenMismatch: right member, wrong or stale token. This is
	// a stale client, never ownership.
	SessionTokenMismatch
)

func (c SessionCheck) String() string {
	switch c {
	case SessionValid:
		return "valid"
	case SessionMissing:
		return "missing"
	case SessionTicketMismatch:
		return "ticket_mismatch"
	case SessionExpired:
		return "expired"
	case SessionTokenMismatch:
		return "token_mismatch"
	}
	return "unknown"
}

func (s *QueueService) getActiveSession(ctx context.Context, scope string) (*models.ActiveSession, error) {
	fields, err := s.store.HGetAll(ctx, activeKey(scope))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	startedAt, _ := strconv.ParseInt(fields["started_at"], 10, 64)
	expiresAt, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
	return &models.ActiveSession{
		MemberID:  fields["member_id"],
		Token:     fields["token"],
		StartedAt: startedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// expireActiveSession tears down a lapsed hold and tells the former
// holder they lost their place.
func (s *QueueService) expireActiveSession(ctx context.Context, scope string, sess *models.ActiveSession) error {
	if err := s.store.Del(ctx, activeKey(scope)); err != nil {
		return err
	}
	if err := s.store.Del(ctx, ticketKey(scope, sess.MemberID)); err != nil {
		return err
	}
	s.publisher.PublishMember(ctx, scope, sess.MemberID,
		models.NewSessionExpired("Your seat-selection session has expired. Please rejoin the queue."))
	s.monitor.TrackQueueOperation("expire", scope, "success")
	return nil
}

// ValidateSession confirms that the caller is the legitimate, non-expired,
// token-matching holder of the scope's active slot. Staleness found along
// the way (vanished or lapsed hold) is healed in place: cleanup plus one
// admission attempt, so a dead holder never wedges the line.
func (s *QueueService) ValidateSession(ctx context.Context, scope, memberID, token string) (SessionCheck, *models.ActiveSession, error) {
	sess, err := s.getActiveSession(ctx, scope)
	if err != nil {
		return SessionMissing, nil, err
	}

	if sess == nil {
		_, inLine, err := s.store.ZScore(ctx, lineKey(scope), memberID)
		if err != nil {
			return SessionMissing, nil, err
		}
		if !inLine {
			// The member is nowhere: their hold expired and was already
			// swept. Make sure the slot is moving again.
			if _, err := s.TryAdmit(ctx, scope); err != nil {
				slog.Warn("admission attempt after missing session failed", "scope", scope, "error", err)
			}
		}
		return SessionMissing, nil, nil
	}

	if sess.MemberID != memberID {
		return SessionTicketMismatch, sess, nil
	}

	if sess.Expired(nowMS()) {
		if err := s.expireActiveSession(ctx, scope, sess); err != nil {
			return SessionExpired, sess, err
		}
		if _, err := s.TryAdmit(ctx, scope); err != nil {
			slog.Warn("admission attempt after session expiry failed", "scope", scope, "error", err)
		}
		return SessionExpired, sess, nil
	}

	if sess.Token != token {
		return SessionTokenMismatch, sess, nil
	}

	return SessionValid, sess, nil
}

// Complete releases the hold early: the member finished picking seats.
// The elapsed service time feeds the ETA estimator and the next member
// is admitted immediately.
func (s *QueueService) Complete(ctx context.Context, scope, memberID, token string) error {
	if scope == "" || memberID == "" || token == "" {
		return status.ErrMissingFields
	}

	check, sess, err := s.ValidateSession(ctx, scope, memberID, token)
	if err != nil {
		return err
	}
	if check != SessionValid {
		s.monitor.TrackQueueOperation("complete", scope, check.String())
		return status.ErrForbidden
	}

	if err := s.store.Del(ctx, activeKey(scope)); err != nil {
		return err
	}
	if err := s.store.Del(ctx, ticketKey(scope, memberID)); err != nil {
		return err
	}
	if err := s.store.ZRem(ctx, presenceKey(scope), memberID); err != nil {
		return err
	}

	elapsed := nowMS() - sess.StartedAt
	s.recordServiceSample(ctx, scope, elapsed)
	s.monitor.TrackHoldDuration(scope, time.Duration(elapsed)*time.Millisecond)
	s.monitor.TrackQueueOperation("complete", scope, "success")

	if _, err := s.TryAdmit(ctx, scope); err != nil {
		slog.Warn("admission attempt after completion failed", "scope", scope, "error", err)
	}
	return nil
}

// Terminate is the administrative removal of a member, whether they hold
// the active slot or are still waiting. The token is optional: with no
// matching active session the call falls through to the waiting line.
func (s *QueueService) Terminate(ctx context.Context, scope, memberID, token string) (*models.TerminateResult, error) {
	if scope == "" || memberID == "" {
		return nil, status.ErrMissingFields
	}

	sess, err := s.getActiveSession(ctx, scope)
	if err != nil {
		return nil, err
	}
	if sess != nil && sess.MemberID == memberID && (token == "" || token == sess.Token) {
		if err := s.store.Del(ctx, activeKey(scope)); err != nil {
			return nil, err
		}
		if err := s.store.Del(ctx, ticketKey(scope, memberID)); err != nil {
			return nil, err
		}
		s.recordServiceSample(ctx, scope, nowMS()-sess.StartedAt)
		s.monitor.TrackQueueOperation("terminate", scope, "active")

		promoted, err := s.TryAdmit(ctx, scope)
		if err != nil {
			slog.Warn("admission attempt after termination failed", "scope", scope, "error", err)
		}
		return &models.TerminateResult{Terminated: true, Promoted: promoted}, nil
	}

	// Not the holder; maybe still waiting in line.
	_, inLine, err := s.store.ZScore(ctx, lineKey(scope), memberID)
	if err != nil {
		return nil, err
	}
	if inLine {
		if err := s.store.ZRem(ctx, lineKey(scope), memberID); err != nil {
			return nil, err
		}
		if err := s.store.ZRem(ctx, ghostKey(scope), memberID); err != nil {
			return nil, err
		}
		if err := s.store.ZRem(ctx, presenceKey(scope), memberID); err != nil {
			return nil, err
		}
		if err := s.store.Del(ctx, ticketKey(scope, memberID)); err != nil {
			return nil, err
		}

		if seq, err := s.store.Incr(ctx, eventSeqKey(scope)); err == nil {
			s.publisher.PublishPublic(ctx, scope, models.NewQueueMove(seq))
		}
		s.monitor.TrackQueueOperation("terminate", scope, "waiting")

		promoted, err := s.TryAdmit(ctx, scope)
		if err != nil {
			slog.Warn("admission attempt after termination failed", "scope", scope, "error", err)
		}
		return &models.TerminateResult{Terminated: true, Promoted: promoted}, nil
	}

	s.monitor.TrackQueueOperation("terminate", scope, "not_found")
	return &models.TerminateResult{Terminated: false, Promoted: false}, nil
}
