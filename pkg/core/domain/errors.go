package domain

import "errors"

var (
	// ErrInvalidBatch rejects the whole batch (400).
	ErrInvalidBatch = errors.New("invalid batch")
	// ErrForbidden is a failed anti-forgery check (403).
	ErrForbidden = errors.New("forbidden")
	// ErrPersistence means the visit row could not be written (500).
	ErrPersistence = errors.New("persistence failure")
	// ErrNoLinksSaved means the visit was written but every link was skipped (400).
	ErrNoLinksSaved = errors.New("no links saved")
)
