package database

import "errors"

var (
	// ErrCodeExists is returned when an attempt is made to create
	// a new short link with a code that already exists.
	ErrCodeExists = errors.New("short code exists")
	// ErrLinkNotFound is returned when an attempt is made to retrieve
	// a short link using a code or id that doesn't exist.
	ErrLinkNotFound = errors.New("short link not found")
)
