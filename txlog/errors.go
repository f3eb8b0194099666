package txlog

import "errors"

var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrMissingSignature  = errors.New("missing signature")
	ErrInvalidHLC        = errors.New("invalid HLC timestamp")
	ErrUnknownParent     = errors.New("parent transaction not found")
	ErrClockSkew         = errors.New("HLC timestamp exceeds allowed clock skew")
	ErrCyclicParents     = errors.New("transaction parents would form a cycle")
	ErrHLCNotAfterParent = errors.New("HLC does not advance past parent timestamp")
	ErrTxNotFound        = errors.New("transaction not found")
)
