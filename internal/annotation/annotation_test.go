package annotation

import (
	"errors"
	"testing"

	"github.com/ayusman/lingolens/internal/ar"
	"github.com/ayusman/lingolens/internal/geometry"
)

func TestManager_SetAnnotations(t *testing.T) {
	m := NewManager(nil)

	t.Run("replaces the whole list", func(t *testing.T) {
		m.SetAnnotations([]Annotation{
			{SourceText: "cup", TranslatedText: "taza", Bounds: geometry.NewRect(0, 0, 10, 10)},
			{SourceText: "dog", TranslatedText: "perro"},
		})
		if m.Count() != 2 {
			t.Fatalf("Count() = %d, want 2", m.Count())
		}

		m.SetAnnotations([]Annotation{{SourceText: "cat", TranslatedText: "gato"}})
		snap := m.Snapshot()
		if len(snap) != 1 || snap[0].TranslatedText != "gato" {
			t.Errorf("Snapshot() = %+v, want only gato", snap)
		}
	})

	t.Run("fills id, time and kind", func(t *testing.T) {
		m.SetAnnotations([]Annotation{{SourceText: "a", Kind: WorldAnchor}})
		a := m.Snapshot()[0]
		if a.ID == "" {
			t.Error("expected generated ID")
		}
		if a.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
		if a.Kind != ScreenRect {
			t.Errorf("Kind = %q, want %q", a.Kind, ScreenRect)
		}
	})

	t.Run("empty list is valid", func(t *testing.T) {
		m.SetAnnotations(nil)
		if m.Count() != 0 {
			t.Errorf("Count() = %d, want 0", m.Count())
		}
		if snap := m.Snapshot(); snap == nil || len(snap) != 0 {
			t.Errorf("Snapshot() = %#v, want empty non-nil slice", snap)
		}
	})
}

func TestManager_VersionAndSubscribers(t *testing.T) {
	m := NewManager(nil)

	var got [][]Annotation
	unsubscribe := m.Subscribe(func(list []Annotation) {
		got = append(got, list)
	})

	v0 := m.Version()
	m.SetAnnotations([]Annotation{{SourceText: "hello", TranslatedText: "hola"}})
	if m.Version() != v0+1 {
		t.Errorf("Version() = %d, want %d", m.Version(), v0+1)
	}
	m.ClearAll()

	if len(got) != 2 {
		t.Fatalf("subscriber called %d times, want 2", len(got))
	}
	if len(got[0]) != 1 || len(got[1]) != 0 {
		t.Errorf("unexpected snapshots: %+v", got)
	}

	unsubscribe()
	m.SetAnnotations(nil)
	if len(got) != 2 {
		t.Error("subscriber called after unsubscribe")
	}
}

func TestManager_PlaceAnnotation_NoScene(t *testing.T) {
	m := NewManager(nil)
	_, err := m.PlaceAnnotation(ar.Pose{}, Annotation{SourceText: "x"})
	if !errors.Is(err, ErrNoScene) {
		t.Errorf("expected ErrNoScene, got %v", err)
	}
}

func TestManager_PlaceAnnotation_ReplacesPrevious(t *testing.T) {
	scene := ar.NewMockScene()
	m := NewManager(scene)

	first, err := m.PlaceAnnotation(ar.Pose{Position: ar.Vec3{Z: -1}}, Annotation{SourceText: "cup", TranslatedText: "taza"})
	if err != nil {
		t.Fatalf("PlaceAnnotation() error = %v", err)
	}
	if first.Kind != WorldAnchor || first.Pose.Position.Z != -1 {
		t.Errorf("unexpected annotation: %+v", first)
	}

	if _, err := m.PlaceAnnotation(ar.Pose{}, Annotation{SourceText: "dog", TranslatedText: "perro"}); err != nil {
		t.Fatalf("PlaceAnnotation() error = %v", err)
	}

	anchors := scene.Anchors()
	if len(anchors) != 2 {
		t.Fatalf("created %d anchors, want 2", len(anchors))
	}
	if anchors[0].DetachCount() != 1 {
		t.Errorf("previous anchor detached %d times, want 1", anchors[0].DetachCount())
	}
	if anchors[1].DetachCount() != 0 {
		t.Error("current anchor must stay attached")
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestManager_PlaceAnnotation_AnchorFailure(t *testing.T) {
	scene := ar.NewMockScene()
	m := NewManager(scene)

	if _, err := m.PlaceAnnotation(ar.Pose{}, Annotation{SourceText: "cup"}); err != nil {
		t.Fatalf("PlaceAnnotation() error = %v", err)
	}

	scene.SetError(errors.New("anchor limit"))
	if _, err := m.PlaceAnnotation(ar.Pose{}, Annotation{SourceText: "dog"}); err == nil {
		t.Fatal("expected error from failing scene")
	}

	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after failed replacement", m.Count())
	}
	if scene.Anchors()[0].DetachCount() != 1 {
		t.Error("previous anchor should be detached exactly once")
	}
}

func TestManager_ClearAll_ReleasesEachAnchorOnce(t *testing.T) {
	scene := ar.NewMockScene()
	m := NewManager(scene)

	for i := 0; i < 3; i++ {
		if _, err := m.PlaceAnnotation(ar.Pose{}, Annotation{SourceText: "x"}); err != nil {
			t.Fatalf("PlaceAnnotation() error = %v", err)
		}
	}
	m.SetAnnotations([]Annotation{{SourceText: "flat"}})

	m.ClearAll()
	m.ClearAll()

	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
	for i, a := range scene.Anchors() {
		if a.DetachCount() != 1 {
			t.Errorf("anchor %d detached %d times, want 1", i, a.DetachCount())
		}
	}
}

func TestManager_Prune(t *testing.T) {
	for _, lost := range []ar.TrackingState{ar.Paused, ar.Stopped} {
		t.Run(lost.String(), func(t *testing.T) {
			scene := ar.NewMockScene()
			m := NewManager(scene)

			if _, err := m.PlaceAnnotation(ar.Pose{}, Annotation{SourceText: "x"}); err != nil {
				t.Fatalf("PlaceAnnotation() error = %v", err)
			}

			if removed := m.Prune(); removed != 0 {
				t.Errorf("Prune() = %d, want 0 while tracking", removed)
			}

			anchor := scene.Anchors()[0]
			anchor.SetTrackingState(lost)

			v := m.Version()
			if removed := m.Prune(); removed != 1 {
				t.Errorf("Prune() = %d, want 1", removed)
			}
			if m.Version() == v {
				t.Error("Prune should bump the version when it removes anchors")
			}
			if m.Count() != 0 {
				t.Errorf("Count() = %d, want 0", m.Count())
			}

			m.ClearAll()
			if anchor.DetachCount() != 1 {
				t.Errorf("pruned anchor detached %d times, want 1", anchor.DetachCount())
			}
		})
	}
}
