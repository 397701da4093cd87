package service

import "errors"

var (
	// ErrLookupUnavailable means the record search could not be reached or
	// failed; the user gets an apology and any pending question is kept.
	ErrLookupUnavailable = errors.New("record lookup unavailable")

	ErrGeneration = errors.New("answer generation failed")

	// ErrReplyNotSent means the turn was computed but the channel did not
	// accept the reply. The session is left untouched so a retry replays it.
	ErrReplyNotSent = errors.New("reply not sent")
)
