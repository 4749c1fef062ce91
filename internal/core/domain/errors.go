package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")

	ErrInvalidQuery          = errors.New("invalid query")
	ErrSearchProvider        = errors.New("search provider error")
	ErrKnowledgeUnavailable  = errors.New("knowledge service unavailable")
	ErrKnowledgeSearchFailed = errors.New("knowledge search failed")
	ErrNoDatasets            = errors.New("no datasets available")
	ErrAllSourcesFailed      = errors.New("all search modes failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// SourceFailure records why one retrieval mode produced nothing.
type SourceFailure struct {
	Mode SearchMode
	Err  error
}

// AllSourcesError is the single error surfaced when every requested mode failed.
type AllSourcesError struct {
	Failures []SourceFailure
}

func NewAllSourcesError(failures ...SourceFailure) *AllSourcesError {
	return &AllSourcesError{Failures: failures}
}

func (e *AllSourcesError) Error() string {
	if e == nil || len(e.Failures) == 0 {
		return ErrAllSourcesFailed.Error()
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Mode, f.Err))
	}
	return ErrAllSourcesFailed.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *AllSourcesError) Unwrap() []error {
	out := []error{ErrAllSourcesFailed}
	if e == nil {
		return out
	}
	for _, f := range e.Failures {
		if f.Err != nil {
			out = append(out, f.Err)
		}
	}
	return out
}
