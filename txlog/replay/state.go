// Package replay implements transaction-log replay: sequential and
// parallel reconstruction of engine state from an ordered sequence of
// transactions, plus checkpointing so replay can resume from a
// recent point instead of the beginning of the log.
package replay

import "kotobadb.dev/kotobadb/txlog"

// State tracks which DefRefs are known to exist during a replay pass.
// The associated value is opaque to replay itself; concrete execution
// semantics are supplied by the
// engine embedding replay, not by this package.
type State struct {
	available map[string]bool
	Metadata  map[string]interface{}
}

func NewState() *State {
	return &State{available: make(map[string]bool), Metadata: make(map[string]interface{})}
}

func defRefKey(ref txlog.DefRef) string {
	key := ref.DefType.String()
	for _, seg := range ref.Path {
		key += "/" + seg
	}
	return key
}

func (s *State) AddDefRef(ref txlog.DefRef) { s.available[defRefKey(ref)] = true }

func (s *State) HasDefRef(ref txlog.DefRef) bool { return s.available[defRefKey(ref)] }

func (s *State) SetMetadata(key string, value interface{}) { s.Metadata[key] = value }

func (s *State) GetMetadata(key string) (interface{}, bool) {
	v, ok := s.Metadata[key]
	return v, ok
}
