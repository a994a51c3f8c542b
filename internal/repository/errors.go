package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist or no
	// longer satisfies the operation's predicate.
	ErrNotFound = errors.New("repository: not found")
)
