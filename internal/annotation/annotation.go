// Package annotation owns the set of translated labels shown to the user,
// either as 2D overlay boxes or as labels attached to AR anchors.
package annotation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/lingolens/internal/ar"
	"github.com/ayusman/lingolens/internal/geometry"
)

// ErrNoScene is returned by PlaceAnnotation when the manager has no AR scene.
var ErrNoScene = errors.New("annotation: no AR scene configured")

// AnchorKind tells how an annotation is positioned.
type AnchorKind string

const (
	// ScreenRect annotations are drawn at a screen-space rectangle.
	ScreenRect AnchorKind = "screen"
	// WorldAnchor annotations are attached to an AR anchor.
	WorldAnchor AnchorKind = "world"
)

// Annotation is a translated label.
type Annotation struct {
	ID             string        `json:"id"`
	SourceText     string        `json:"source_text"`
	SourceLang     string        `json:"source_lang"`
	TranslatedText string        `json:"translated_text"`
	Kind           AnchorKind    `json:"kind"`
	Bounds         geometry.Rect `json:"bounds"`
	Pose           ar.Pose       `json:"pose"`
	CreatedAt      time.Time     `json:"created_at"`
}

// anchored pairs a world annotation with the anchor it owns.
type anchored struct {
	annotation Annotation
	anchor     ar.Anchor
	released   bool
}

// release detaches the anchor once. Later calls do nothing.
func (a *anchored) release() {
	if a.released {
		return
	}
	a.released = true
	a.anchor.Detach()
}

// Manager owns every active annotation and every anchor it creates.
// Anchors never leave the manager; callers only see Annotation values.
//
// The AR policy is replace-all: PlaceAnnotation detaches the current anchor
// before creating the next one, so at most one world annotation is alive.
type Manager struct {
	scene ar.Scene

	mu          sync.Mutex
	flat        []Annotation
	world       []*anchored
	version     uint64
	subscribers map[int]func([]Annotation)
	nextSub     int
}

// NewManager creates a Manager. scene may be nil when only 2D overlays are used.
func NewManager(scene ar.Scene) *Manager {
	return &Manager{
		scene:       scene,
		subscribers: make(map[int]func([]Annotation)),
	}
}

// Subscribe registers fn to receive a snapshot after every change.
// It returns a function that removes the subscription.
func (m *Manager) Subscribe(fn func([]Annotation)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// SetAnnotations replaces every 2D annotation with list. An empty list is the
// valid "nothing detected" state. Missing IDs and timestamps are filled in.
func (m *Manager) SetAnnotations(list []Annotation) {
	now := time.Now()
	flat := make([]Annotation, len(list))
	for i, a := range list {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.Kind = ScreenRect
		flat[i] = a
	}

	m.mu.Lock()
	m.flat = flat
	m.changedLocked()
}

// PlaceAnnotation creates an anchor at pose and attaches a label to it.
// Any previously placed world annotation is detached first.
func (m *Manager) PlaceAnnotation(pose ar.Pose, a Annotation) (Annotation, error) {
	if m.scene == nil {
		return Annotation{}, ErrNoScene
	}

	m.mu.Lock()
	m.releaseWorldLocked()

	anchor, err := m.scene.CreateAnchor(pose)
	if err != nil {
		m.changedLocked()
		return Annotation{}, err
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.Kind = WorldAnchor
	a.Pose = anchor.Pose()

	m.world = append(m.world, &anchored{annotation: a, anchor: anchor})
	m.changedLocked()
	return a, nil
}

// ClearAll detaches every anchor and removes every annotation.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	m.flat = nil
	m.releaseWorldLocked()
	m.changedLocked()
}

// Prune detaches anchors that are no longer tracking, paused or stopped, and
// returns how many annotations were removed.
func (m *Manager) Prune() int {
	m.mu.Lock()

	kept := m.world[:0]
	removed := 0
	for _, w := range m.world {
		if w.anchor.TrackingState() != ar.Tracking {
			w.release()
			removed++
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(m.world); i++ {
		m.world[i] = nil
	}
	m.world = kept

	if removed == 0 {
		m.mu.Unlock()
		return 0
	}
	m.changedLocked()
	return removed
}

// Snapshot returns a copy of the active annotations, 2D first.
func (m *Manager) Snapshot() []Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Count returns the number of active annotations.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flat) + len(m.world)
}

// Version increases every time the annotation set changes. Renderers compare
// it with the version they last drew to know whether they are dirty.
func (m *Manager) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *Manager) releaseWorldLocked() {
	for _, w := range m.world {
		w.release()
	}
	m.world = nil
}

func (m *Manager) snapshotLocked() []Annotation {
	out := make([]Annotation, 0, len(m.flat)+len(m.world))
	out = append(out, m.flat...)
	for _, w := range m.world {
		out = append(out, w.annotation)
	}
	return out
}

// changedLocked bumps the version, unlocks and notifies subscribers outside
// the lock. It must be called with m.mu held.
func (m *Manager) changedLocked() {
	m.version++
	snapshot := m.snapshotLocked()
	subs := make([]func([]Annotation), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
