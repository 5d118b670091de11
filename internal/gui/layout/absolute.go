// Package layout places the console panels at stored rectangles.
package layout

import (
	store "aca-console/internal/layout"

	"fyne.io/fyne/v2"
)

// Absolute positions object i at rect i; objects without a rect keep their place.
type Absolute struct {
	rects []store.Rect
}

func NewAbsolute(rects ...store.Rect) *Absolute {
	return &Absolute{rects: rects}
}

func (a *Absolute) Rect(i int) store.Rect {
	return a.rects[i]
}

func (a *Absolute) SetRect(i int, r store.Rect) {
	a.rects[i] = r
}

func (a *Absolute) Layout(objects []fyne.CanvasObject, _ fyne.Size) {
	for i, obj := range objects {
		if i >= len(a.rects) {
			break
		}
		r := a.rects[i]
		obj.Move(fyne.NewPos(float32(r.X), float32(r.Y)))
		obj.Resize(fyne.NewSize(float32(r.W), float32(r.H)))
	}
}

// MinSize covers the furthest panel edge so a scroll container can reach it.
func (a *Absolute) MinSize(objects []fyne.CanvasObject) fyne.Size {
	var size fyne.Size
	for i := range objects {
		if i >= len(a.rects) {
			break
		}
		r := a.rects[i]
		size.Width = max(size.Width, float32(r.X+r.W))
		size.Height = max(size.Height, float32(r.Y+r.H))
	}
	return size
}
