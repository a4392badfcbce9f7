// Package ar defines the world-tracking collaborator used to anchor labels in 3D space.
package ar

import "errors"

// ErrNotTracking is returned when the scene is not tracking the world.
var ErrNotTracking = errors.New("ar: camera is not tracking")

// TrackingState is the per-frame state of world tracking.
type TrackingState int

const (
	// Stopped means tracking has ended and will not resume.
	Stopped TrackingState = iota
	// Paused means tracking is temporarily lost.
	Paused
	// Tracking means poses and hit tests are valid.
	Tracking
)

func (s TrackingState) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Vec3 is a point or direction in world space, in meters.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a rotation quaternion.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is a position and orientation in world space.
type Pose struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
}

// Hit is the result of a hit test against tracked geometry.
type Hit struct {
	Pose Pose
	// Distance from the camera in meters.
	Distance float64
	// OnPlane is true when the hit lies inside a tracked planar surface's polygon.
	OnPlane bool
}

// Anchor is a fixed pose in tracked space that a label can be attached to.
type Anchor interface {
	Pose() Pose
	// TrackingState reports whether the anchor is still tracked.
	TrackingState() TrackingState
	// Detach stops tracking the anchor and releases its resources.
	Detach()
}

// Scene is the AR session as seen by the pipeline.
type Scene interface {
	// TrackingState reports the camera tracking state for the current frame.
	TrackingState() TrackingState
	// HitTest casts a ray through image coordinates (x, y) of the current frame.
	// Hits are sorted by distance, nearest first.
	HitTest(x, y float64) []Hit
	// CreateAnchor creates an anchor at the given pose.
	CreateAnchor(pose Pose) (Anchor, error)
}

// FirstPlaneHit returns the nearest hit that lands on a tracked plane.
func FirstPlaneHit(hits []Hit) (Hit, bool) {
	for _, h := range hits {
		if h.OnPlane {
			return h, true
		}
	}
	return Hit{}, false
}
