// Package retry wraps transient-error handling for Mongo calls in
// exponential backoff, so a blip in the connection doesn't surface as a
// hard failure to a caller that would have succeeded a moment later.
package retry

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"chronovault/internal/chronoerr"
)

// Do retries fn with exponential backoff until it succeeds, ctx is done, or
// fn returns an error that isn't transient. Transience is judged by the
// Mongo driver's own network/timeout/label classification first, falling
// back to chronoerr.Retryable for errors a caller has already wrapped in a
// domain sentinel. Deadline exceeded while retrying is reported as
// chronoerr.ErrTimeout.
func Do(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	var lastErr error
	op := func() error {
		err := fn()
		lastErr = err
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return chronoerr.ErrTimeout
		}
		return lastErr
	}
	return nil
}

// retryable reports whether err is a transient condition worth another
// attempt: a network blip, a server-reported timeout, or a write the
// server itself labeled retryable. Anything else, including mongo.ErrNoDocuments
// and validation failures, is permanent.
func retryable(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.HasErrorLabel("RetryableWriteError") || cmdErr.HasErrorLabel("TransientTransactionError") {
			return true
		}
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, label := range writeErr.Labels {
			if label == "RetryableWriteError" || label == "TransientTransactionError" {
				return true
			}
		}
	}

	return chronoerr.Retryable(err)
}
