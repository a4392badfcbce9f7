package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/lingolens/internal/annotation"
	"github.com/ayusman/lingolens/internal/ar"
	"github.com/ayusman/lingolens/internal/capture"
	"github.com/ayusman/lingolens/internal/dispatch"
	"github.com/ayusman/lingolens/internal/mode"
	"github.com/ayusman/lingolens/internal/store"
)

// job is one admitted frame and the mode tag it was issued under.
type job struct {
	frame *capture.Frame
	tag   mode.Tag
}

// runCapture reads frames at the camera frame rate and feeds them to
// HandleFrame.
//
// Pipeline logic:
// 1. Skip everything while processing is disabled
// 2. Render the preview if anyone is watching
// 3. Drop frames taken while the camera is shaking
// 4. Admit at most one frame per interval through the gate
// 5. Hand the admitted frame to the worker
func (a *App) runCapture(stopCh <-chan struct{}) {
	defer a.wg.Done()

	fps := a.camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				// Only log when the failure changes.
				if err.Error() != lastErr {
					log.Printf("Error reading frame: %v", err)
					lastErr = err.Error()
				}
				continue
			}
			lastErr = ""

			a.renderPreview(frame)
			a.HandleFrame(frame)
		}
	}
}

// HandleFrame offers a captured frame to the pipeline. It takes ownership of
// the frame and returns true if the frame was admitted for detection.
// Rejected frames are released immediately.
func (a *App) HandleFrame(frame *capture.Frame) bool {
	if frame == nil {
		return false
	}

	// Frames the gate would reject skip the shake filter. The filter keeps
	// comparing against the last frame it examined.
	if !a.active() || !a.gate.Ready(frame.Timestamp) {
		frame.Close()
		return false
	}

	if steady, _ := a.shake.Steady(&frame.Mat); !steady {
		frame.Close()
		return false
	}

	// The read lock is held across the send so Stop cannot drain the queue
	// between the running check and the hand-off.
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running || !a.enabled || !a.gate.Admit(frame.Timestamp) {
		frame.Close()
		return false
	}

	select {
	case a.jobs <- job{frame: frame, tag: a.modes.Tag()}:
		return true
	default:
		frame.Close()
		a.gate.Release()
		return false
	}
}

func (a *App) active() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running && a.enabled
}

func (a *App) runWorker(jobs <-chan job, stopCh <-chan struct{}) {
	defer a.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case j := <-jobs:
			a.runCycle(j)
		}
	}
}

// runCycle runs detection, selection, translation and annotation for one
// admitted frame. The gate is released when the cycle ends, whatever the
// outcome.
func (a *App) runCycle(j job) {
	defer a.gate.Release()
	defer j.frame.Close()

	a.mu.RLock()
	parent := a.ctx
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(parent, a.config.CycleTimeout)
	defer cancel()

	batch, err := a.dispatcher.Dispatch(ctx, j.frame, j.tag.Mode)
	seq := j.frame.Seq
	j.frame.Close()

	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrTrackingLost), errors.Is(err, context.Canceled):
		default:
			log.Printf("Error detecting frame %d: %v", seq, err)
		}
		return
	}

	if !a.modes.IsCurrent(j.tag) {
		return
	}

	var res *Result
	switch {
	case a.dispatcher.Scene() != nil:
		res = a.cycleAnchored(ctx, j.tag, seq, batch, a.dispatcher.Scene())
	case j.tag.Mode == mode.Object:
		res = a.cycleObject(ctx, j.tag, seq, batch)
	default:
		res = a.cycleText(ctx, j.tag, seq, batch)
	}

	if res != nil {
		a.record(*res)
	}
}

func (a *App) cycleObject(ctx context.Context, tag mode.Tag, seq uint64, batch dispatch.Batch) *Result {
	sel, ok := a.filter.SelectObject(batch)
	if !ok {
		// Nothing in the guide region: the previous label no longer applies.
		a.apply(tag, seq, func() {
			a.annotations.ClearAll()
			a.setLast(nil)
		})
		return nil
	}
	return a.translateScreen(ctx, tag, seq, sel)
}

func (a *App) cycleText(ctx context.Context, tag mode.Tag, seq uint64, batch dispatch.Batch) *Result {
	sel, ok := a.filter.SelectText(batch)
	if !ok {
		return nil
	}

	a.mu.RLock()
	last := a.lastText
	a.mu.RUnlock()
	if last != "" && dispatch.SimilarText(sel.Candidate.Label, last) {
		return nil
	}

	return a.translateScreen(ctx, tag, seq, sel)
}

func (a *App) translateScreen(ctx context.Context, tag mode.Tag, seq uint64, sel dispatch.Selection) *Result {
	target := a.TargetLanguage()
	tr := a.resolver.Resolve(ctx, sel.Candidate.Label, target)

	ann := annotation.Annotation{
		ID:             uuid.New().String(),
		SourceText:     sel.Candidate.Label,
		SourceLang:     tr.SourceLang,
		TranslatedText: tr.Text,
		Kind:           annotation.ScreenRect,
		Bounds:         sel.ScreenBox,
		CreatedAt:      time.Now(),
	}

	applied := a.apply(tag, seq, func() {
		a.annotations.SetAnnotations([]annotation.Annotation{ann})
		a.setLast(&lastApplied{tag: tag, ann: ann})
		if tag.Mode == mode.Text {
			a.mu.Lock()
			a.lastText = ann.SourceText
			a.mu.Unlock()
		}
	})
	if !applied {
		return nil
	}

	return &Result{
		Mode:           tag.Mode,
		Kind:           annotation.ScreenRect,
		SourceText:     ann.SourceText,
		SourceLang:     tr.SourceLang,
		TranslatedText: tr.Text,
		TargetLang:     target,
		Degraded:       tr.Degraded,
	}
}

// cycleAnchored places the label on a tracked plane. Candidates with no plane
// under their centroid are skipped and the current label stays.
func (a *App) cycleAnchored(ctx context.Context, tag mode.Tag, seq uint64, batch dispatch.Batch, scene ar.Scene) *Result {
	sel, ok := a.filter.SelectAnchor(scene, batch)
	if !ok {
		return nil
	}

	target := a.TargetLanguage()
	tr := a.resolver.Resolve(ctx, sel.Candidate.Label, target)

	ann := annotation.Annotation{
		SourceText:     sel.Candidate.Label,
		SourceLang:     tr.SourceLang,
		TranslatedText: tr.Text,
		Bounds:         sel.ScreenBox,
	}

	var placeErr error
	applied := a.apply(tag, seq, func() {
		a.annotations.Prune()
		placed, err := a.annotations.PlaceAnnotation(sel.Hit.Pose, ann)
		if err != nil {
			placeErr = err
			a.setLast(nil)
			return
		}
		a.setLast(&lastApplied{tag: tag, ann: placed, pose: sel.Hit.Pose})
	})
	if !applied {
		return nil
	}
	if placeErr != nil {
		log.Printf("Error placing anchor: %v", placeErr)
		return nil
	}

	return &Result{
		Mode:           tag.Mode,
		Kind:           annotation.WorldAnchor,
		SourceText:     ann.SourceText,
		SourceLang:     tr.SourceLang,
		TranslatedText: tr.Text,
		TargetLang:     target,
		Degraded:       tr.Degraded,
	}
}

// apply runs fn on the UI loop if the result is still current: the mode tag
// matches and no newer frame has been applied. It reports whether fn ran.
func (a *App) apply(tag mode.Tag, seq uint64, fn func()) bool {
	applied := false
	a.ui.Sync(func() {
		if !a.modes.IsCurrent(tag) || seq < a.lastAppliedSeq {
			return
		}
		a.lastAppliedSeq = seq
		fn()
		applied = true
	})
	return applied
}

func (a *App) setLast(l *lastApplied) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = l
}

// retranslate resolves the last applied annotation into lang and swaps the
// label in place if nothing replaced it meanwhile.
func (a *App) retranslate(last lastApplied, lang string) {
	a.mu.RLock()
	parent := a.ctx
	a.mu.RUnlock()
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithTimeout(parent, a.config.CycleTimeout)
	defer cancel()

	tr := a.resolver.Resolve(ctx, last.ann.SourceText, lang)

	ann := last.ann
	ann.SourceLang = tr.SourceLang
	ann.TranslatedText = tr.Text

	var placeErr error
	applied := false
	a.ui.Sync(func() {
		if !a.modes.IsCurrent(last.tag) || a.TargetLanguage() != lang || !a.showing(ann.ID) {
			return
		}
		switch ann.Kind {
		case annotation.WorldAnchor:
			ann.ID = ""
			placed, err := a.annotations.PlaceAnnotation(last.pose, ann)
			if err != nil {
				placeErr = err
				a.setLast(nil)
				return
			}
			a.setLast(&lastApplied{tag: last.tag, ann: placed, pose: last.pose})
		default:
			a.annotations.SetAnnotations([]annotation.Annotation{ann})
			a.setLast(&lastApplied{tag: last.tag, ann: ann})
		}
		applied = true
	})

	if placeErr != nil {
		log.Printf("Error placing anchor: %v", placeErr)
	}
	if applied {
		a.record(Result{
			Mode:           last.tag.Mode,
			Kind:           ann.Kind,
			SourceText:     ann.SourceText,
			SourceLang:     tr.SourceLang,
			TranslatedText: tr.Text,
			TargetLang:     lang,
			Degraded:       tr.Degraded,
		})
	}
}

// showing reports whether the annotation with id is displayed. UI loop only.
func (a *App) showing(id string) bool {
	for _, ann := range a.annotations.Snapshot() {
		if ann.ID == id {
			return true
		}
	}
	return false
}

// record stores the result in history and notifies listeners.
func (a *App) record(res Result) {
	a.mu.Lock()
	r := res
	a.result = &r
	listeners := append([]func(Result){}, a.onResult...)
	a.mu.Unlock()

	if a.config.Store != nil {
		entry := &store.HistoryEntry{
			Mode:           res.Mode.String(),
			AnchorKind:     string(res.Kind),
			SourceText:     res.SourceText,
			SourceLang:     res.SourceLang,
			TranslatedText: res.TranslatedText,
			TargetLang:     res.TargetLang,
			Degraded:       res.Degraded,
		}
		if err := a.config.Store.History().Add(entry); err != nil {
			log.Printf("Failed to save history: %v", err)
		}
	}

	for _, fn := range listeners {
		fn(res)
	}
}
