// Package detector provides object and text detection over camera frames.
package detector

import (
	"context"
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns candidates in image space.
	// Returns an empty slice if nothing is detected.
	Detect(ctx context.Context, frame *gocv.Mat) ([]Candidate, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for detection.
type Config struct {
	// MinConfidence is the minimum confidence an object label needs (0.0-1.0).
	MinConfidence float64

	// MaxResults caps the number of candidates per frame (0 means no cap).
	MaxResults int

	// IdleTimeout shuts the detection service down after this long without use.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.6,
		MaxResults:    10,
		IdleTimeout:   30 * time.Second,
	}
}
