package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid executor context")
	ErrUnauthorized        = errors.New("caller lacks the required privilege")
	ErrBanned              = errors.New("user is banned")
	ErrShareNotViewable    = errors.New("share can no longer be viewed")
	ErrShareLimitReached   = errors.New("active share limit reached")
	ErrPayloadTooLarge     = errors.New("payload exceeds the allowed size")
	ErrBroadcastInProgress = errors.New("a broadcast is already running")
	ErrFlowExpired         = errors.New("conversation flow expired or was never started")
)
