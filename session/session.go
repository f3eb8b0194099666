// Package session carries the per-request execution context of the
// query engine: who is asking, which database they target, how long
// the request may run, and the bound parameters.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"kotobadb.dev/kotobadb/graph"
)

// QueryContext is the L7 request envelope. A nil PrincipalID means an
// anonymous caller; authorization then falls through to the policy
// engine's default-deny setting.
type QueryContext struct {
	RequestID   string
	PrincipalID *string
	Database    string
	Timeout     time.Duration
	Parameters  map[string]graph.Value
}

// DefaultTimeout applies when a QueryContext carries no explicit
// timeout.
const DefaultTimeout = 30 * time.Second

// New returns a QueryContext targeting database with the default
// timeout and a fresh request ID.
func New(database string) *QueryContext {
	return &QueryContext{
		RequestID:  uuid.NewString(),
		Database:   database,
		Timeout:    DefaultTimeout,
		Parameters: map[string]graph.Value{},
	}
}

// WithPrincipal sets the authenticated principal.
func (q *QueryContext) WithPrincipal(id string) *QueryContext {
	q.PrincipalID = &id
	return q
}

// WithTimeout overrides the wall-clock budget.
func (q *QueryContext) WithTimeout(d time.Duration) *QueryContext {
	if d > 0 {
		q.Timeout = d
	}
	return q
}

// WithParameter binds a named query parameter.
func (q *QueryContext) WithParameter(name string, v graph.Value) *QueryContext {
	q.Parameters[name] = v
	return q
}

// Principal returns the principal id, or "" for anonymous callers.
func (q *QueryContext) Principal() string {
	if q.PrincipalID == nil {
		return ""
	}
	return *q.PrincipalID
}

// Deadline derives the cancellable context every operator's Next is
// polled with. The caller owns the returned CancelFunc.
func (q *QueryContext) Deadline(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(parent, timeout)
}
