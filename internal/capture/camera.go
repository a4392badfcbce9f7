// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 10
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Frame is a captured video frame with metadata. The pixel buffer is owned by
// the frame and released exactly once by Close, whichever path gets there first.
type Frame struct {
	Mat gocv.Mat
	// Timestamp is the capture time relative to when the camera was opened.
	Timestamp time.Duration
	// Seq increases by one for every frame read from the same camera.
	Seq    uint64
	Width  int
	Height int
	// Rotation is the clockwise rotation in degrees needed to display the
	// frame upright.
	Rotation int

	once     sync.Once
	mu       sync.Mutex
	released bool
}

// NewFrame wraps mat in a Frame. The frame takes ownership of mat.
func NewFrame(mat gocv.Mat, ts time.Duration, seq uint64, rotation int) *Frame {
	return &Frame{
		Mat:       mat,
		Timestamp: ts,
		Seq:       seq,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Rotation:  rotation,
	}
}

// Close releases the pixel buffer. Calling it more than once is a no-op.
func (f *Frame) Close() error {
	if f == nil {
		return nil
	}
	var err error
	f.once.Do(func() {
		f.mu.Lock()
		f.released = true
		f.mu.Unlock()
		err = f.Mat.Close()
	})
	return err
}

// Released reports whether Close has been called.
func (f *Frame) Released() bool {
	if f == nil {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame reads the next frame. The caller owns the frame and must Close it.
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	rotation int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	openedAt time.Time
	seq      uint64
}

// NewCamera creates a new Camera with the given device ID. rotation is
// reported on every frame read from the device.
func NewCamera(deviceID, rotation int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		rotation: rotation,
		fps:      DefaultFPS,
	}
}

// Open opens the camera for capturing frames.
// It sets the resolution to 640x480 for performance.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	c.openedAt = time.Now()
	c.seq = 0

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
func (c *cameraImpl) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	c.seq++
	return NewFrame(mat, time.Since(c.openedAt), c.seq, c.rotation), nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
