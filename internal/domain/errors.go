package domain

import "errors"

// Sentinel errors shared across services. Controllers map these to HTTP
// statuses; anything else is treated as an internal persistence failure and
// logged with full detail.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrNotDraft     = errors.New("rehearsal is not a draft")
	ErrNoRecipients = errors.New("no recipients")
)
