package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidColumn indicates a requested metric is absent from a dataset's schema.
var ErrInvalidColumn = errors.New("invalid column")

// ColumnError names the missing column and what the dataset does offer.
type ColumnError struct {
	Column    string
	Available []string
}

func (e *ColumnError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s: %q", ErrInvalidColumn, e.Column)
	}
	return fmt.Sprintf("%s: %q (available: %s)", ErrInvalidColumn, e.Column, strings.Join(e.Available, ", "))
}

func (e *ColumnError) Unwrap() error { return ErrInvalidColumn }
