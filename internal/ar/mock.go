package ar

import "sync"

// MockScene is a test implementation of Scene.
type MockScene struct {
	mu      sync.Mutex
	state   TrackingState
	hits    []Hit
	err     error
	anchors []*MockAnchor
}

// NewMockScene creates a MockScene that is tracking and returns no hits.
func NewMockScene() *MockScene {
	return &MockScene{state: Tracking}
}

// SetTrackingState sets the state returned by TrackingState.
func (s *MockScene) SetTrackingState(state TrackingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// SetHits sets the hits returned by every HitTest call.
func (s *MockScene) SetHits(hits []Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = hits
}

// SetError makes CreateAnchor fail with err.
func (s *MockScene) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// TrackingState returns the configured state.
func (s *MockScene) TrackingState() TrackingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HitTest returns the configured hits.
func (s *MockScene) HitTest(x, y float64) []Hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Hit(nil), s.hits...)
}

// CreateAnchor records and returns a new MockAnchor.
func (s *MockScene) CreateAnchor(pose Pose) (Anchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	a := &MockAnchor{pose: pose, state: Tracking}
	s.anchors = append(s.anchors, a)
	return a, nil
}

// Anchors returns every anchor created so far.
func (s *MockScene) Anchors() []*MockAnchor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*MockAnchor(nil), s.anchors...)
}

// MockAnchor counts how many times it was detached.
type MockAnchor struct {
	mu       sync.Mutex
	pose     Pose
	state    TrackingState
	detached int
}

// Pose returns the anchor pose.
func (a *MockAnchor) Pose() Pose { return a.pose }

// TrackingState returns the anchor tracking state.
func (a *MockAnchor) TrackingState() TrackingState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetTrackingState changes the anchor tracking state.
func (a *MockAnchor) SetTrackingState(state TrackingState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
}

// Detach increments the detach counter.
func (a *MockAnchor) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detached++
}

// DetachCount returns how many times Detach was called.
func (a *MockAnchor) DetachCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detached
}
