// Package testutil provides deterministic test fixtures shared across
// package test suites.
package testutil

import (
	"fmt"
	"sync"
)

// IDSequence is a thread-safe deterministic id generator for tests: it
// yields "<prefix>-0", "<prefix>-1", ... so correlation ids and request ids
// are stable across runs.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewIDSequence creates a sequence starting at "<prefix>-0".
func NewIDSequence(prefix string) *IDSequence {
	return &IDSequence{prefix: prefix}
}

// Next returns the next id in the sequence.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%s-%d", s.prefix, s.seq)
	s.seq++
	return id
}

// Reset restarts the sequence. The next call to Next returns "<prefix>-0"
// again, for scenarios that run twice and compare outputs.
func (s *IDSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
