package dispatch

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ayusman/lingolens/internal/ar"
	"github.com/ayusman/lingolens/internal/detector"
	"github.com/ayusman/lingolens/internal/geometry"
)

// MinTextLength is the shortest text block, in runes, worth translating.
const MinTextLength = 2

// Selection is the candidate chosen for annotation.
type Selection struct {
	Candidate detector.Candidate
	// ScreenBox is the candidate box mapped into screen space.
	ScreenBox geometry.Rect
	// Hit is set on the AR path.
	Hit ar.Hit
}

// Filter picks the candidate to annotate. Guide is the on-screen guide region
// and View the on-screen camera preview, both in screen coordinates.
type Filter struct {
	Threshold float64
	Guide     geometry.Rect
	View      geometry.View
}

// SelectObject returns the most confident object whose confidence is at least
// Threshold and whose mapped center lies inside the guide region.
func (f Filter) SelectObject(b Batch) (Selection, bool) {
	var best Selection
	found := false

	for _, c := range b.Candidates {
		if c.Kind != detector.Object || c.Confidence < f.Threshold {
			continue
		}
		screen := f.View.Map(c.Box, b.ImageSize)
		if !f.Guide.Contains(screen.Center()) {
			continue
		}
		if !found || c.Confidence > best.Candidate.Confidence {
			best = Selection{Candidate: c, ScreenBox: screen}
			found = true
		}
	}
	return best, found
}

// SelectText returns the first text block, in reading order, whose mapped box
// intersects the guide region and whose text is long enough to translate.
func (f Filter) SelectText(b Batch) (Selection, bool) {
	for _, c := range b.Candidates {
		if c.Kind != detector.TextBlock || !longEnough(c.Label) {
			continue
		}
		screen := f.View.Map(c.Box, b.ImageSize)
		if screen.Intersects(f.Guide) {
			return Selection{Candidate: c, ScreenBox: screen}, true
		}
	}
	return Selection{}, false
}

// SelectAnchor hit-tests candidates at their image-space centroid and returns
// the first whose hit lands on a tracked plane. Objects are tried from most
// to least confident, text blocks in reading order. Candidates without a
// plane hit are dropped silently.
func (f Filter) SelectAnchor(scene ar.Scene, b Batch) (Selection, bool) {
	if scene == nil {
		return Selection{}, false
	}

	cands := make([]detector.Candidate, 0, len(b.Candidates))
	for _, c := range b.Candidates {
		switch c.Kind {
		case detector.Object:
			if c.Confidence >= f.Threshold {
				cands = append(cands, c)
			}
		case detector.TextBlock:
			if longEnough(c.Label) {
				cands = append(cands, c)
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Kind == detector.Object && cands[j].Kind == detector.Object {
			return cands[i].Confidence > cands[j].Confidence
		}
		return false
	})

	for _, c := range cands {
		center := c.Box.Center()
		hit, ok := ar.FirstPlaneHit(scene.HitTest(center.X, center.Y))
		if !ok {
			continue
		}
		return Selection{
			Candidate: c,
			ScreenBox: f.View.Map(c.Box, b.ImageSize),
			Hit:       hit,
		}, true
	}
	return Selection{}, false
}

func longEnough(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinTextLength
}
