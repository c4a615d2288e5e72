package repository

import "errors"

var (
	// ErrPersistence wraps every failure of the underlying store.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrLeaseLost is returned when a terminal write finds the item no longer
	// leased by the caller.
	ErrLeaseLost = errors.New("lease no longer held by owner")
	// ErrNotRequeueable is returned when requeueing an item that is not FAILED or DEAD.
	ErrNotRequeueable = errors.New("item is not failed or dead")
)
