package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPolicyNotFound    = errors.New("policy not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrWebSourceNotFound = errors.New("web source not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")

	// Stage-level failure kinds. The QA workflow recovers from every one
	// of them with a degraded default; none of them surfaces to the
	// caller as a hard failure.
	ErrRetrieval = errors.New("retrieval failure")
	ErrWebSearch = errors.New("web search failure")
	ErrSynthesis = errors.New("synthesis failure")
	ErrParse     = errors.New("parse failure")
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
