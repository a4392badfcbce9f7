package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	candidates []Candidate
	err        error
	hook       func()
	calls      int
	closed     bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetCandidates sets the candidates that will be returned by Detect.
func (m *MockDetector) SetCandidates(candidates []Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = candidates
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetHook installs a function that Detect runs before returning. Tests use
// it to block detection or change state mid-cycle.
func (m *MockDetector) SetHook(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Detect returns the pre-configured candidates or error.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]Candidate, error) {
	m.mu.Lock()
	m.calls++
	hook := m.hook
	cands := append([]Candidate(nil), m.candidates...)
	err := m.err
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if cands == nil {
		return []Candidate{}, nil
	}
	return cands, nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
