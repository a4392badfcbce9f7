// Package dispatch routes admitted frames to the detector for the current
// mode and selects the candidate to annotate.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/lingolens/internal/ar"
	"github.com/ayusman/lingolens/internal/capture"
	"github.com/ayusman/lingolens/internal/detector"
	"github.com/ayusman/lingolens/internal/geometry"
	"github.com/ayusman/lingolens/internal/mode"
)

var (
	// ErrStaleFrame is returned when the frame is missing, empty or already released.
	ErrStaleFrame = errors.New("dispatch: frame unavailable or stale")
	// ErrNoDetector is returned when no detector is registered for the mode.
	ErrNoDetector = errors.New("dispatch: no detector for mode")
	// ErrTrackingLost is returned on the AR path when the camera is not tracking.
	ErrTrackingLost = errors.New("dispatch: camera tracking lost")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dispatch: dispatcher closed")
)

// Batch is the normalized output of one detection run. Boxes are in upright
// image space; ImageSize is the upright frame size.
type Batch struct {
	Mode       mode.Mode
	Candidates []detector.Candidate
	ImageSize  geometry.Size
}

// Dispatcher runs the detector registered for a mode.
type Dispatcher struct {
	scene ar.Scene

	mu        sync.RWMutex
	detectors map[mode.Mode]detector.Detector
	closed    bool
}

// New creates a Dispatcher. scene may be nil when no AR session is available.
func New(detectors map[mode.Mode]detector.Detector, scene ar.Scene) *Dispatcher {
	d := &Dispatcher{
		scene:     scene,
		detectors: make(map[mode.Mode]detector.Detector, len(detectors)),
	}
	for m, det := range detectors {
		if det != nil {
			d.detectors[m] = det
		}
	}
	return d
}

// Scene returns the AR scene, or nil.
func (d *Dispatcher) Scene() ar.Scene {
	return d.scene
}

// Dispatch runs detection for m on frame. It does not take ownership of the
// frame; the caller releases it.
func (d *Dispatcher) Dispatch(ctx context.Context, frame *capture.Frame, m mode.Mode) (Batch, error) {
	if frame == nil || frame.Released() || frame.Mat.Empty() {
		return Batch{}, ErrStaleFrame
	}

	d.mu.RLock()
	closed := d.closed
	det, ok := d.detectors[m]
	d.mu.RUnlock()

	if closed {
		return Batch{}, ErrClosed
	}
	if !ok {
		return Batch{}, fmt.Errorf("%w: %s", ErrNoDetector, m)
	}

	if d.scene != nil && d.scene.TrackingState() != ar.Tracking {
		return Batch{}, ErrTrackingLost
	}

	raw, err := det.Detect(ctx, &frame.Mat)
	if err != nil {
		return Batch{}, fmt.Errorf("detect %s: %w", m, err)
	}

	size := geometry.Size{Width: float64(frame.Width), Height: float64(frame.Height)}
	_, upright := geometry.Normalize(geometry.Rect{}, size, frame.Rotation)

	batch := Batch{
		Mode:       m,
		Candidates: make([]detector.Candidate, 0, len(raw)),
		ImageSize:  upright,
	}
	for _, c := range raw {
		if !c.Valid() {
			continue
		}
		c.Box, _ = geometry.Normalize(c.Box, size, frame.Rotation)
		batch.Candidates = append(batch.Candidates, c)
	}

	return batch, nil
}

// Close closes every registered detector.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	dets := make([]detector.Detector, 0, len(d.detectors))
	for _, det := range d.detectors {
		dets = append(dets, det)
	}
	d.mu.Unlock()

	var errs []error
	for _, det := range dets {
		if err := det.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
