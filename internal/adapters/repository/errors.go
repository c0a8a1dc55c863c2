package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrRead  = errors.New("store read failed")
	ErrWrite = errors.New("store write failed")
)
