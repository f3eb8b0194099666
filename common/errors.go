package common

import "fmt"

// Kind tags the category of an Error per the engine's error taxonomy:
// storage, schema, transaction, authorization, query, replication, and
// monitoring failures are all distinguishable by Kind without string
// matching on the message.
type Kind string

const (
	KindStorage       Kind = "storage"
	KindSchema        Kind = "schema"
	KindTransaction   Kind = "transaction"
	KindAuthorization Kind = "authorization"
	KindQuery         Kind = "query"
	KindReplication   Kind = "replication"
	KindMonitoring    Kind = "monitoring"
)

// Error wraps an underlying error with a Kind tag and the operation
// that produced it, so callers can use errors.Is/errors.As instead of
// matching on message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap produces an *Error tagged with kind and op, or nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
