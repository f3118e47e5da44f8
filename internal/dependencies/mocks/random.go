package mocks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wye/wye-server/internal/dependencies/random"
)

// MockRandom hands out queued tokens, then predictable unique ones
type MockRandom struct {
	mu      sync.Mutex
	tokens  []string
	issued  int
	failing bool
	armed   bool
	failIn  int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Token returns the next queued token, or "token-<n>" once the queue is empty
func (r *MockRandom) Token(n int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed {
		if r.failIn == 0 {
			r.failing = true
		}
		r.failIn--
	}
	if r.failing {
		return "", errors.New("entropy source unavailable")
	}
	r.issued++
	if len(r.tokens) > 0 {
		t := r.tokens[0]
		r.tokens = r.tokens[1:]
		return t, nil
	}
	return fmt.Sprintf("token-%d", r.issued), nil
}

// QueueToken adds values to the token queue
func (r *MockRandom) QueueToken(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, values...)
}

// Fail makes every following Token call fail until Reset
func (r *MockRandom) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing = true
}

// FailAfter lets n more Token calls succeed, then fails like Fail
func (r *MockRandom) FailAfter(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
	r.failIn = n
}

// Reset clears queued tokens and failure mode
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = nil
	r.issued = 0
	r.failing = false
	r.armed = false
}
