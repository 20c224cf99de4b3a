package directory

import "errors"

var (
	ErrNotFound = errors.New("entity not found")
	ErrInactive = errors.New("entity is inactive")
)
