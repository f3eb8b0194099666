package common

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Transient is implemented by errors that advertise they are worth a
// retry (e.g. a storage backend reporting a transient network blip).
type Transient interface {
	Transient() bool
}

// IsTransient reports whether err (or something it wraps) declares
// itself retryable via the Transient interface.
func IsTransient(err error) bool {
	var t Transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// RetryOnce retries fn exactly once, after an exponential-backoff
// delay, if and only if the first attempt's error is Transient. This
// implements the storage propagation policy: "Storage errors retry
// once with exponential backoff if the backend advertises
// transient-failure semantics; otherwise propagate."
func RetryOnce(ctx context.Context, fn func() error) error {
	first := fn()
	if first == nil || !IsTransient(first) {
		return first
	}

	timer := time.NewTimer(backoff.NewExponentialBackOff().NextBackOff())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return fn()
}
