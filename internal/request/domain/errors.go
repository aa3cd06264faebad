package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrFollowupInProgress = errors.New("follow-up already in progress")
	ErrInvalidInput       = errors.New("invalid input")
)
