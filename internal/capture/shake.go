package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Shake filter constants
const (
	// BlurSize is the kernel size for Gaussian blur (21x21)
	BlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// sampleWidth is the width frames are downscaled to before comparison.
	sampleWidth = 160
)

// ShakeFilter rejects frames captured while the camera is moving quickly.
// Detection on such frames returns blurred, short-lived results, so they are
// dropped before reaching the throttle gate.
type ShakeFilter struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewShakeFilter creates a ShakeFilter. threshold is the percentage of pixels
// that may change between consecutive frames for the camera to count as
// steady. A threshold <= 0 disables the filter.
func NewShakeFilter(threshold float64) *ShakeFilter {
	return &ShakeFilter{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Steady reports whether frame is steady relative to the previous frame, and
// the percentage of pixels that changed. The first frame is always steady.
//
// Algorithm:
// 1. Downscale and convert to grayscale
// 2. Apply Gaussian blur (21x21) to reduce noise
// 3. Calculate absolute difference with previous frame
// 4. Threshold the difference (threshold=25)
// 5. Count non-zero pixels / total pixels = changePercent
func (s *ShakeFilter) Steady(frame *gocv.Mat) (bool, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}
	if s.threshold <= 0 {
		return true, 0
	}

	small := gocv.NewMat()
	defer small.Close()
	if frame.Cols() > sampleWidth {
		h := frame.Rows() * sampleWidth / frame.Cols()
		gocv.Resize(*frame, &small, image.Point{X: sampleWidth, Y: h}, 0, 0, gocv.InterpolationArea)
	} else {
		frame.CopyTo(&small)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	if !s.initialized || blurred.Rows() != s.prevGray.Rows() || blurred.Cols() != s.prevGray.Cols() {
		blurred.CopyTo(&s.prevGray)
		s.initialized = true
		return true, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, s.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	totalPixels := thresh.Rows() * thresh.Cols()
	changePercent := float64(nonZero) / float64(totalPixels) * 100.0

	blurred.CopyTo(&s.prevGray)

	return changePercent <= s.threshold, changePercent
}

// Reset clears the baseline frame.
func (s *ShakeFilter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prevGray.Empty() {
		s.prevGray.Close()
		s.prevGray = gocv.NewMat()
	}
	s.initialized = false
}

// Close releases resources used by the filter.
func (s *ShakeFilter) Close() {
	s.Reset()
}

// SetThreshold sets the allowed change percentage. Negative values are ignored;
// zero disables the filter.
func (s *ShakeFilter) SetThreshold(threshold float64) {
	if threshold < 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.threshold = threshold
}

// Threshold returns the allowed change percentage.
func (s *ShakeFilter) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}
