package repository

import "errors"

var (
	// ErrNotFound is returned by stores when the record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrExists is returned by Create when the record is already there.
	ErrExists = errors.New("repository: already exists")
)
