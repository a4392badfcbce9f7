// Package overlay draws screen-space annotations onto a preview canvas.
package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/lingolens/internal/annotation"
	"github.com/ayusman/lingolens/internal/geometry"
)

// Default drawing settings
const (
	DefaultThickness = 4
	DefaultFontScale = 0.9
	// LabelOffset is how far above the box the label baseline sits.
	LabelOffset = 8
)

var (
	boxColor   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	textColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	guideColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// Renderer draws annotations. It holds no per-frame state; every Draw
// call renders the given list from scratch.
type Renderer struct {
	// View is the on-screen preview rectangle; the canvas covers exactly this area.
	View      geometry.View
	Thickness int
	FontScale float64
}

// NewRenderer creates a Renderer for a preview view.
func NewRenderer(view geometry.View) *Renderer {
	return &Renderer{View: view, Thickness: DefaultThickness, FontScale: DefaultFontScale}
}

// Canvas rotates frame upright and scales it to the view size. The caller
// must close the returned Mat.
func (r *Renderer) Canvas(frame gocv.Mat, rotation int) gocv.Mat {
	upright := gocv.NewMat()
	defer upright.Close()

	switch ((rotation % 360) + 360) % 360 {
	case 90:
		gocv.Rotate(frame, &upright, gocv.Rotate90Clockwise)
	case 180:
		gocv.Rotate(frame, &upright, gocv.Rotate180Clockwise)
	case 270:
		gocv.Rotate(frame, &upright, gocv.Rotate90CounterClockwise)
	default:
		frame.CopyTo(&upright)
	}

	canvas := gocv.NewMat()
	w, h := int(r.View.Width), int(r.View.Height)
	if upright.Empty() || w <= 0 || h <= 0 {
		upright.CopyTo(&canvas)
		return canvas
	}
	gocv.Resize(upright, &canvas, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationLinear)
	return canvas
}

// Draw renders screen-space annotations onto dst. World-anchored annotations
// belong to the scene graph and are skipped. A nil or empty dst is a no-op.
func (r *Renderer) Draw(dst *gocv.Mat, anns []annotation.Annotation) int {
	if dst == nil || dst.Empty() {
		return 0
	}

	drawn := 0
	for _, a := range anns {
		if a.Kind != annotation.ScreenRect || a.Bounds.Empty() {
			continue
		}
		box := r.toCanvas(a.Bounds)
		gocv.Rectangle(dst, box, boxColor, r.thickness())

		label := a.TranslatedText
		if label == "" {
			label = a.SourceText
		}
		origin := image.Point{X: box.Min.X, Y: box.Min.Y - LabelOffset}
		if origin.Y < LabelOffset {
			origin.Y = box.Min.Y + LabelOffset*3
		}
		gocv.PutText(dst, label, origin, gocv.FontHersheySimplex, r.FontScale, textColor, 2)
		drawn++
	}
	return drawn
}

// DrawGuide outlines the guide region on dst.
func (r *Renderer) DrawGuide(dst *gocv.Mat, guide geometry.Rect) {
	if dst == nil || dst.Empty() || guide.Empty() {
		return
	}
	gocv.Rectangle(dst, r.toCanvas(guide), guideColor, 1)
}

func (r *Renderer) toCanvas(s geometry.Rect) image.Rectangle {
	return geometry.Rect{
		MinX: s.MinX - r.View.X,
		MinY: s.MinY - r.View.Y,
		MaxX: s.MaxX - r.View.X,
		MaxY: s.MaxY - r.View.Y,
	}.ImageRect()
}

func (r *Renderer) thickness() int {
	if r.Thickness <= 0 {
		return DefaultThickness
	}
	return r.Thickness
}
