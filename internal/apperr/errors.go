package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateIdentity = errors.New("duplicate document identity")
	ErrEmptyRegistry     = errors.New("registry has no documents")
	ErrSessionClosed     = errors.New("session closed")
)
