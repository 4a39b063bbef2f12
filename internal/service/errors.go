package service

import (
	"context"
	"errors"
	"fmt"
)

// Failures surfaced to callers. Identifier conflicts never appear here: they
// are retried inside Create and only show up as ErrResourceExhausted.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrResourceExhausted = errors.New("collision retries exhausted")
	ErrTimeout           = errors.New("operation timed out")
	ErrInternal          = errors.New("internal error")
)

// storeError classifies a failed store call made under ctx.
func storeError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
