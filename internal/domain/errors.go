package domain

import "errors"

// Protocol errors. Every failed call aborts with one of these (possibly
// wrapped) and leaves no partial state behind.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidState          = errors.New("invalid state")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidOption         = errors.New("invalid option")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrAlreadyClaimed        = errors.New("already claimed")
	ErrAlreadyRefunded       = errors.New("already refunded")
	ErrNotAWinner            = errors.New("not a winner")
	ErrNotFound              = errors.New("not found")
	ErrBelowReserveThreshold = errors.New("below reserve threshold")
)

// Node errors.
var (
	ErrUnknownAction = errors.New("unknown action")
	ErrBadPayload    = errors.New("bad payload")
	ErrBadSignature  = errors.New("bad signature")
	ErrNonceReused   = errors.New("nonce already used")
	ErrHalted        = errors.New("producer halted")
	ErrRateLimited   = errors.New("rate limited")
	ErrSigningFailed = errors.New("signing failed")
	ErrLockHeld      = errors.New("lock already held")
	ErrAlreadyExists = errors.New("already exists")
)
