package geometry

// View describes where the camera preview is drawn on screen.
type View struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Rect returns the on-screen rectangle covered by the view.
func (v View) Rect() Rect {
	return NewRect(v.X, v.Y, v.Width, v.Height)
}

// Map converts a rectangle in image space into screen space.
//
//	screen = viewOrigin + imageRect * (viewSize / imageSize)
//
// Each axis is scaled independently. Rotation must already be applied with
// Normalize. A zero image size yields the view origin as an empty rectangle.
func (v View) Map(r Rect, imageSize Size) Rect {
	if imageSize.Width <= 0 || imageSize.Height <= 0 {
		return Rect{MinX: v.X, MinY: v.Y, MaxX: v.X, MaxY: v.Y}
	}

	scaleX := v.Width / imageSize.Width
	scaleY := v.Height / imageSize.Height

	return Rect{
		MinX: v.X + r.MinX*scaleX,
		MinY: v.Y + r.MinY*scaleY,
		MaxX: v.X + r.MaxX*scaleX,
		MaxY: v.Y + r.MaxY*scaleY,
	}
}

// Normalize rotates a rectangle from raw sensor orientation into upright
// orientation. rotation is the clockwise rotation in degrees the raw image
// needs to be upright (0, 90, 180 or 270); other values are treated as 0.
// It returns the rotated rectangle and the upright image size.
func Normalize(r Rect, size Size, rotation int) (Rect, Size) {
	w, h := size.Width, size.Height

	switch ((rotation % 360) + 360) % 360 {
	case 90:
		// (x, y) -> (h - y, x)
		return Rect{MinX: h - r.MaxY, MinY: r.MinX, MaxX: h - r.MinY, MaxY: r.MaxX}, Size{Width: h, Height: w}
	case 180:
		// (x, y) -> (w - x, h - y)
		return Rect{MinX: w - r.MaxX, MinY: h - r.MaxY, MaxX: w - r.MinX, MaxY: h - r.MinY}, size
	case 270:
		// (x, y) -> (y, w - x)
		return Rect{MinX: r.MinY, MinY: w - r.MaxX, MaxX: r.MaxY, MaxY: w - r.MinX}, Size{Width: h, Height: w}
	default:
		return r, size
	}
}
