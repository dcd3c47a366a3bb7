package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/repository"
)

// DefaultCollaboratorTimeout applies when no timeout is configured
const DefaultCollaboratorTimeout = 30 * time.Second

// callCollaborator runs fn under a bounded deadline and classifies its failure.
// Anything the store or provider returns that is not already classified
// surfaces as a retryable network error.
func callCollaborator(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultCollaboratorTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(cctx)
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, repository.ErrLocationNotFound) {
		return apperr.NewNotFoundError("location not found", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return apperr.NewNetworkError(fmt.Sprintf("%s timed out after %s", op, timeout), err)
	}
	return apperr.NewNetworkError(op+" failed", err)
}
