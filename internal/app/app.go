// Package app wires the frame pipeline together: capture, throttling,
// detection, translation and annotation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/lingolens/internal/annotation"
	"github.com/ayusman/lingolens/internal/ar"
	"github.com/ayusman/lingolens/internal/capture"
	"github.com/ayusman/lingolens/internal/config"
	"github.com/ayusman/lingolens/internal/detector"
	"github.com/ayusman/lingolens/internal/dispatch"
	"github.com/ayusman/lingolens/internal/geometry"
	"github.com/ayusman/lingolens/internal/mode"
	"github.com/ayusman/lingolens/internal/overlay"
	"github.com/ayusman/lingolens/internal/store"
	"github.com/ayusman/lingolens/internal/throttle"
	"github.com/ayusman/lingolens/internal/translate"
)

// Pipeline defaults.
const (
	DefaultCycleTimeout   = 10 * time.Second
	DefaultTargetLanguage = "es"
	uiQueueSize           = 64
)

// ErrInvalidLanguage is returned by SetTargetLanguage for a malformed code.
var ErrInvalidLanguage = errors.New("invalid language code")

// Config holds configuration options for the application.
type Config struct {
	Store      *store.Store // optional
	Camera     capture.Camera
	Detectors  map[mode.Mode]detector.Detector
	Scene      ar.Scene // optional; enables the AR path
	Identifier translate.Identifier
	Backend    translate.Backend

	Mode           mode.Mode
	TargetLanguage string
	SourceLanguage string
	MinInterval    time.Duration
	ShakeThreshold float64
	CycleTimeout   time.Duration
	MinConfidence  float64
	View           geometry.View
	Guide          geometry.Rect
}

// Result is a translation applied to the annotation set.
type Result struct {
	Mode           mode.Mode             `json:"mode"`
	Kind           annotation.AnchorKind `json:"kind"`
	SourceText     string                `json:"source_text"`
	SourceLang     string                `json:"source_lang"`
	TranslatedText string                `json:"translated_text"`
	TargetLang     string                `json:"target_lang"`
	Degraded       bool                  `json:"degraded"`
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Running        bool                   `json:"running"`
	Enabled        bool                   `json:"enabled"`
	Mode           string                 `json:"mode"`
	Epoch          uint64                 `json:"epoch"`
	TargetLanguage string                 `json:"target_language"`
	InFlight       bool                   `json:"in_flight"`
	Gate           throttle.Stats         `json:"gate"`
	Annotations    int                    `json:"annotations"`
	Session        *translate.SessionInfo `json:"session,omitempty"`
	LastResult     *Result                `json:"last_result,omitempty"`
}

// lastApplied remembers the most recent annotation so a language change can
// re-translate it in place.
type lastApplied struct {
	tag  mode.Tag
	ann  annotation.Annotation
	pose ar.Pose
}

// App is the main application that orchestrates the translation pipeline.
type App struct {
	config      Config
	camera      capture.Camera
	shake       *capture.ShakeFilter
	gate        *throttle.Gate
	modes       *mode.Machine
	dispatcher  *dispatch.Dispatcher
	resolver    *translate.Resolver
	annotations *annotation.Manager
	renderer    *overlay.Renderer
	filter      dispatch.Filter
	ui          *uiLoop

	mu       sync.RWMutex
	enabled  bool
	running  bool
	target   string
	stopCh   chan struct{}
	jobs     chan job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	last     *lastApplied
	lastText string
	result   *Result
	onResult []func(Result)

	// Owned by the UI loop.
	lastAppliedSeq uint64

	preview previewState
}

// New creates a new App instance with the given configuration.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if len(config.Detectors) == 0 {
		return nil, errors.New("app: at least one detector is required")
	}
	if config.Backend == nil {
		return nil, errors.New("app: translation backend is required")
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = DefaultCycleTimeout
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = detector.DefaultConfig().MinConfidence
	}

	target := strings.TrimSpace(config.TargetLanguage)
	if target == "" {
		target = DefaultTargetLanguage
	}

	var cache translate.Cache
	if config.Store != nil {
		cache = config.Store.Translations()
		target = config.Store.Settings().GetOr(store.SettingTargetLanguage, target)
		if m, err := mode.Parse(config.Store.Settings().GetOr(store.SettingMode, config.Mode.String())); err == nil {
			config.Mode = m
		}
	}

	a := &App{
		config:      config,
		camera:      config.Camera,
		shake:       capture.NewShakeFilter(config.ShakeThreshold),
		gate:        throttle.NewGate(config.MinInterval),
		modes:       mode.NewMachine(config.Mode),
		dispatcher:  dispatch.New(config.Detectors, config.Scene),
		resolver:    translate.NewResolver(config.Identifier, config.Backend, translate.Config{DefaultSource: config.SourceLanguage, Cache: cache}),
		annotations: annotation.NewManager(config.Scene),
		renderer:    overlay.NewRenderer(config.View),
		filter: dispatch.Filter{
			Threshold: config.MinConfidence,
			Guide:     config.Guide,
			View:      config.View,
		},
		ui:      newUILoop(uiQueueSize),
		enabled: true,
		target:  target,
	}

	a.preview.cond = sync.NewCond(&a.preview.mu)
	a.modes.OnTransition(a.handleTransition)

	return a, nil
}

// handleTransition clears every annotation on a mode change. It is queued on
// the UI loop ahead of any result produced under the new mode.
func (a *App) handleTransition(tr mode.Transition) {
	log.Printf("Detection mode %s -> %s", tr.From, tr.To)

	a.mu.Lock()
	a.last = nil
	a.lastText = ""
	a.mu.Unlock()

	a.ui.Do(a.annotations.ClearAll)

	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(store.SettingMode, tr.To.String()); err != nil {
			log.Printf("Failed to save mode: %v", err)
		}
	}
}

// SetEnabled enables or disables frame processing.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether frame processing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Mode returns the current detection mode.
func (a *App) Mode() mode.Mode {
	return a.modes.Mode()
}

// SetMode switches the detection mode. Annotations are cleared and results
// still in flight are discarded.
func (a *App) SetMode(m mode.Mode) mode.Transition {
	return a.modes.Set(m)
}

// ToggleMode switches between object and text detection.
func (a *App) ToggleMode() mode.Transition {
	return a.modes.Toggle()
}

// TargetLanguage returns the language translations are made into.
func (a *App) TargetLanguage() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.target
}

// SetTargetLanguage changes the target language and re-translates the most
// recent annotation if it is still on screen.
func (a *App) SetTargetLanguage(lang string) error {
	lang = strings.TrimSpace(lang)
	if !config.ValidLanguage(lang) {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}

	a.mu.Lock()
	if a.target == lang {
		a.mu.Unlock()
		return nil
	}
	a.target = lang
	last := a.last
	// Added under the lock so Stop's Wait cannot miss it.
	spawn := last != nil && a.running
	if spawn {
		a.wg.Add(1)
	}
	a.mu.Unlock()

	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(store.SettingTargetLanguage, lang); err != nil {
			log.Printf("Failed to save target language: %v", err)
		}
	}

	if spawn {
		go func() {
			defer a.wg.Done()
			if a.modes.IsCurrent(last.tag) {
				a.retranslate(*last, lang)
			}
		}()
	}
	return nil
}

// OnResult registers a callback invoked after every applied translation.
func (a *App) OnResult(fn func(Result)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onResult = append(a.onResult, fn)
}

// Start opens the camera and begins the pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.running {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	a.gate.Reset()
	a.shake.Reset()
	a.stopCh = make(chan struct{})
	a.jobs = make(chan job, 1)
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.running = true

	a.wg.Add(2)
	go a.runWorker(a.jobs, a.stopCh)
	go a.runCapture(a.stopCh)

	log.Printf("Translation pipeline started (mode %s, target %s)", a.modes.Mode(), a.target)
	return nil
}

// Stop halts the pipeline. Results still in flight are discarded, every
// annotation is cleared and the camera is closed.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.stopCh)
	a.cancel()
	jobs := a.jobs
	a.last = nil
	a.lastText = ""
	a.mu.Unlock()

	a.modes.Invalidate()
	a.wg.Wait()

	// A frame may have been admitted after the worker exited.
	for {
		select {
		case j := <-jobs:
			j.frame.Close()
			a.gate.Release()
			continue
		default:
		}
		break
	}

	a.ui.Sync(func() {
		a.annotations.ClearAll()
		a.lastAppliedSeq = 0
	})

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}

	log.Println("Translation pipeline stopped")
}

// Close stops the pipeline and releases detectors, translator and UI loop.
func (a *App) Close() error {
	a.Stop()
	a.wg.Wait()

	var errs []error
	if err := a.dispatcher.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.resolver.Close(); err != nil {
		errs = append(errs, err)
	}
	a.shake.Close()
	a.ui.stop()
	return errors.Join(errs...)
}

// IsRunning reports whether the pipeline is started.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// Annotations returns the annotation manager.
func (a *App) Annotations() *annotation.Manager {
	return a.annotations
}

// Gate returns the frame throttle gate.
func (a *App) Gate() *throttle.Gate {
	return a.gate
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Guide returns the guide region in screen coordinates.
func (a *App) Guide() geometry.Rect {
	return a.config.Guide
}

// Status returns a snapshot of the pipeline state.
func (a *App) Status() Status {
	tag := a.modes.Tag()

	a.mu.RLock()
	st := Status{
		Running:        a.running,
		Enabled:        a.enabled,
		Mode:           tag.Mode.String(),
		Epoch:          tag.Epoch,
		TargetLanguage: a.target,
	}
	if a.result != nil {
		r := *a.result
		st.LastResult = &r
	}
	a.mu.RUnlock()

	st.InFlight = a.gate.InFlight()
	st.Gate = a.gate.Stats()
	st.Annotations = a.annotations.Count()
	if info, ok := a.resolver.Session(); ok {
		st.Session = &info
	}
	return st
}
