package service

import "errors"

// Domain error taxonomy. Handlers translate these to HTTP statuses; the
// delivery pipeline translates them to ERROR events on the sender's mailbox.
var (
	ErrValidation       = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrSelfRequest      = errors.New("cannot send friend request to yourself")
	ErrDuplicateRequest = errors.New("friend request already exists")
	ErrAlreadyResponded = errors.New("friend request has already been responded to")
	ErrForbidden        = errors.New("operation not permitted")
	ErrPersistence      = errors.New("storage operation failed")
	ErrUnauthorized     = errors.New("invalid credentials")
)

// Error codes carried on ERROR events so clients can branch without parsing
// message text.
const (
	CodeValidation  = "VALIDATION"
	CodeNotFound    = "NOT_FOUND"
	CodePersistence = "PERSISTENCE"
)
