// Package geometry maps between screen and image coordinates under pan and zoom.
package geometry

import (
	"math"

	"golang.org/x/image/math/f64"
)

const (
	MinScale  = 0.5
	MaxScale  = 4.0
	ZoomStep  = 0.1
	baseScale = 1.0
)

// ViewState is the pan/zoom of a viewer. Scale stays within [MinScale, MaxScale].
type ViewState struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Identity is the state a freshly loaded image starts from.
func Identity() ViewState {
	return ViewState{Scale: baseScale}
}

func ClampScale(scale float64) float64 {
	if scale < MinScale {
		return MinScale
	}
	if scale > MaxScale {
		return MaxScale
	}
	return scale
}

// Zoomed steps the scale by ZoomStep in the direction of deltaSign.
// The result is snapped to the step grid so repeated steps do not drift.
func (v ViewState) Zoomed(deltaSign int) ViewState {
	switch {
	case deltaSign > 0:
		v.Scale = ClampScale(snap(v.Scale + ZoomStep))
	case deltaSign < 0:
		v.Scale = ClampScale(snap(v.Scale - ZoomStep))
	}
	return v
}

func snap(scale float64) float64 {
	const grid = 1 / ZoomStep
	return math.Round(scale*grid) / grid
}

// Panned shifts the offset; panning past the image edge is allowed.
func (v ViewState) Panned(dx, dy float64) ViewState {
	v.OffsetX += dx
	v.OffsetY += dy
	return v
}

func ScreenToImage(px, py float64, v ViewState) (float64, float64) {
	return (px - v.OffsetX) / v.Scale, (py - v.OffsetY) / v.Scale
}

func ImageToScreen(x, y float64, v ViewState) (float64, float64) {
	return x*v.Scale + v.OffsetX, y*v.Scale + v.OffsetY
}

// Affine is the image-to-screen transform: scale first, then translate.
func (v ViewState) Affine() f64.Aff3 {
	return f64.Aff3{
		v.Scale, 0, v.OffsetX,
		0, v.Scale, v.OffsetY,
	}
}
