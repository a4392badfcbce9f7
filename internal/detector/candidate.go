package detector

import (
	"math"
	"strings"

	"github.com/ayusman/lingolens/internal/geometry"
)

// Kind identifies what produced a candidate.
type Kind string

const (
	// Object is a labeled object with a confidence score.
	Object Kind = "object"
	// TextBlock is a block of recognized text.
	TextBlock Kind = "text"
)

// Candidate is a single detection in image coordinates.
type Candidate struct {
	Kind       Kind          `json:"kind"`
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Box        geometry.Rect `json:"box"`
}

// NewObject returns an object candidate.
func NewObject(label string, confidence float64, box geometry.Rect) Candidate {
	return Candidate{Kind: Object, Label: label, Confidence: confidence, Box: box}
}

// NewTextBlock returns a text block candidate. Recognized text carries full confidence.
func NewTextBlock(text string, box geometry.Rect) Candidate {
	return Candidate{Kind: TextBlock, Label: text, Confidence: 1, Box: box}
}

// Valid reports whether the candidate has a label and a usable box.
func (c Candidate) Valid() bool {
	if strings.TrimSpace(c.Label) == "" {
		return false
	}
	for _, v := range []float64{c.Box.MinX, c.Box.MinY, c.Box.MaxX, c.Box.MaxY, c.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !c.Box.Empty()
}

// Clip returns the candidate with its box clipped to the image bounds.
func (c Candidate) Clip(size geometry.Size) Candidate {
	c.Box = geometry.Rect{
		MinX: clamp(c.Box.MinX, 0, size.Width),
		MinY: clamp(c.Box.MinY, 0, size.Height),
		MaxX: clamp(c.Box.MaxX, 0, size.Width),
		MaxY: clamp(c.Box.MaxY, 0, size.Height),
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
