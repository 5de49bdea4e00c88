// Package apperr defines sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotUntitled   = errors.New("resource is not untitled")
	ErrDisposed      = errors.New("working copy is disposed")
)
