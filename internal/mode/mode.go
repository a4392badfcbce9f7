// Package mode holds the detection mode and tags asynchronous work with the
// mode it was issued under.
package mode

import (
	"fmt"
	"strings"
	"sync"
)

// Mode selects which detector runs on admitted frames.
type Mode int

const (
	// Object detects labelled objects.
	Object Mode = iota
	// Text detects blocks of text.
	Text
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case Object:
		return "object"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Parse converts a mode name into a Mode.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "object", "objects":
		return Object, nil
	case "text":
		return Text, nil
	default:
		return Object, fmt.Errorf("unknown mode %q", s)
	}
}

// Other returns the mode a toggle switches to.
func (m Mode) Other() Mode {
	if m == Object {
		return Text
	}
	return Object
}

// Tag identifies the context an asynchronous result was issued under.
// Epoch increases on every transition and invalidation, so a tag from before
// a switch never matches again even if the mode comes back.
type Tag struct {
	Mode  Mode
	Epoch uint64
}

// Transition describes a mode change delivered to listeners.
type Transition struct {
	From Mode
	To   Mode
	Tag  Tag
}

// Machine is the detection mode state machine.
type Machine struct {
	mu        sync.RWMutex
	mode      Mode
	epoch     uint64
	listeners []func(Transition)
}

// NewMachine creates a Machine starting in the given mode.
func NewMachine(initial Mode) *Machine {
	return &Machine{mode: initial}
}

// OnTransition registers a listener called after every transition.
// Listeners run on the goroutine that triggered the transition, outside the
// machine's lock, in registration order.
func (m *Machine) OnTransition(fn func(Transition)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Tag returns the tag for work issued now.
func (m *Machine) Tag() Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Tag{Mode: m.mode, Epoch: m.epoch}
}

// IsCurrent reports whether a tag still matches the current mode and epoch.
func (m *Machine) IsCurrent(t Tag) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return t.Mode == m.mode && t.Epoch == m.epoch
}

// Toggle switches to the other mode.
func (m *Machine) Toggle() Transition {
	m.mu.Lock()
	from := m.mode
	m.mu.Unlock()
	return m.Set(from.Other())
}

// Set switches to the given mode. Setting the current mode still counts as a
// transition: annotations are cleared and pending results become stale.
func (m *Machine) Set(to Mode) Transition {
	m.mu.Lock()
	from := m.mode
	m.mode = to
	m.epoch++
	tr := Transition{From: from, To: to, Tag: Tag{Mode: to, Epoch: m.epoch}}
	listeners := append([]func(Transition){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(tr)
	}
	return tr
}

// Invalidate makes every outstanding tag stale without changing the mode.
// Used when the capture surface pauses or stops.
func (m *Machine) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
}
