package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-recorded frames for testing. Timestamps advance
// by a fixed interval per frame, starting at zero.
type MockCamera struct {
	frames   []*gocv.Mat
	index    int
	seq      uint64
	interval time.Duration
	rotation int
	loop     bool
	mu       sync.Mutex
	running  bool
	fps      int
	readErr  error
}

// NewMockCamera creates a MockCamera. interval is the timestamp step between
// consecutive frames.
func NewMockCamera(frames []*gocv.Mat, loop bool, interval time.Duration) *MockCamera {
	return &MockCamera{
		frames:   frames,
		loop:     loop,
		interval: interval,
		fps:      DefaultFPS,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	c.seq = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if c.readErr != nil {
		return nil, c.readErr
	}

	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return nil, fmt.Errorf("no more frames")
		}
	}

	// Clone the frame so the original isn't modified
	mat := c.frames[c.index].Clone()
	c.index++

	ts := time.Duration(c.seq) * c.interval
	c.seq++

	return NewFrame(mat, ts, c.seq, c.rotation), nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// SetRotation sets the rotation reported on subsequent frames.
func (c *MockCamera) SetRotation(degrees int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotation = degrees
}

// SetReadError makes ReadFrame fail until cleared with nil.
func (c *MockCamera) SetReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	c.seq = 0
}
