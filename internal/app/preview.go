package app

import (
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/lingolens/internal/capture"
)

// previewState holds the latest rendered preview frame. Rendering only
// happens while at least one watcher is registered.
type previewState struct {
	mu       sync.Mutex
	watchers int
	jpeg     []byte
	seq      uint64
	cond     *sync.Cond
}

// WatchPreview registers a preview consumer. Call the returned function to
// unregister.
func (a *App) WatchPreview() func() {
	a.preview.mu.Lock()
	a.preview.watchers++
	a.preview.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.preview.mu.Lock()
			a.preview.watchers--
			if a.preview.watchers == 0 {
				a.preview.jpeg = nil
			}
			a.preview.cond.Broadcast()
			a.preview.mu.Unlock()
		})
	}
}

// LatestPreview returns the most recent JPEG-encoded preview and its
// sequence number. The slice must not be modified.
func (a *App) LatestPreview() ([]byte, uint64) {
	a.preview.mu.Lock()
	defer a.preview.mu.Unlock()
	return a.preview.jpeg, a.preview.seq
}

// NextPreview blocks until a preview newer than after is available or done
// is closed.
func (a *App) NextPreview(after uint64, done <-chan struct{}) ([]byte, uint64, bool) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-done:
			a.preview.mu.Lock()
			a.preview.cond.Broadcast()
			a.preview.mu.Unlock()
		case <-stop:
		}
	}()

	a.preview.mu.Lock()
	defer a.preview.mu.Unlock()
	for a.preview.seq <= after || a.preview.jpeg == nil {
		select {
		case <-done:
			return nil, 0, false
		default:
		}
		a.preview.cond.Wait()
	}
	return a.preview.jpeg, a.preview.seq, true
}

// renderPreview draws the current annotations and guide over frame and
// stores the JPEG. The frame is not consumed.
func (a *App) renderPreview(frame *capture.Frame) {
	a.preview.mu.Lock()
	watching := a.preview.watchers > 0
	a.preview.mu.Unlock()
	if !watching {
		return
	}

	canvas := a.renderer.Canvas(frame.Mat, frame.Rotation)
	defer canvas.Close()

	a.renderer.Draw(&canvas, a.annotations.Snapshot())
	a.renderer.DrawGuide(&canvas, a.config.Guide)

	buf, err := gocv.IMEncode(".jpg", canvas)
	if err != nil {
		log.Printf("Error encoding preview: %v", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.preview.mu.Lock()
	a.preview.jpeg = data
	a.preview.seq++
	a.preview.cond.Broadcast()
	a.preview.mu.Unlock()
}
