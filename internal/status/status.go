package status

import "errors"

var (
	ErrMissingFields = errors.New("waitroom: missing required fields")
	ErrAlreadyQueued = errors.New("waitroom: member already queued")
	ErrForbidden     = errors.New("waitroom: token or ownership mismatch")
	ErrScopeNotFound = errors.New("waitroom: unknown schedule scope")
	ErrOrphanRetry   = errors.New("waitroom: orphan retry limit reached")
)
