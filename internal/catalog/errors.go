package catalog

import "errors"

var (
	// ErrDuplicateOption indicates the value already exists in the local list.
	ErrDuplicateOption = errors.New("option already exists")
	// ErrOptionIndex indicates an edit addressed a slot outside the local list.
	ErrOptionIndex = errors.New("option index out of range")
	// ErrInvalidOption indicates a blank value or unknown category.
	ErrInvalidOption = errors.New("invalid option")
)
