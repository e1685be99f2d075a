package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLoad          = errors.New("corpus load failed")
	ErrEmptyQuery    = errors.New("query text is empty")
	ErrIndexNotBuilt = errors.New("vector index not built")
)

// LoadError describes why the corpus could not be loaded. Row is the 1-based
// data row (header excluded) when the failure is tied to one, zero otherwise.
type LoadError struct {
	Source string
	Row    int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("load %s [row=%d]: %v", e.Source, e.Row, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

// Unwrap exposes both ErrLoad and the underlying cause to errors.Is/As.
func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

// NewLoadError wraps err for source. row is 1-based; zero means no row.
func NewLoadError(source string, row int, err error) *LoadError {
	return &LoadError{Source: source, Row: row, Err: err}
}
