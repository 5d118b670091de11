package layout

import (
	"testing"

	store "aca-console/internal/layout"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/stretchr/testify/assert"
)

func TestAbsolutePlacesObjectsAtRects(t *testing.T) {
	def := store.Default()
	a := NewAbsolute(def.Controls, def.Viewer, def.Right)

	objs := []fyne.CanvasObject{canvas.NewRectangle(nil), canvas.NewRectangle(nil), canvas.NewRectangle(nil)}
	a.Layout(objs, fyne.NewSize(2000, 1000))

	assert.Equal(t, fyne.NewPos(24, 16), objs[0].Position())
	assert.Equal(t, fyne.NewSize(280, 640), objs[0].Size())
	assert.Equal(t, fyne.NewPos(1200, 16), objs[2].Position())
	assert.Equal(t, fyne.NewSize(1520, 656), a.MinSize(objs))
}

func TestSetRectMovesPanel(t *testing.T) {
	a := NewAbsolute(store.Rect{X: 0, Y: 0, W: 300, H: 300})
	a.SetRect(0, a.Rect(0).Moved(15, -5))

	obj := canvas.NewRectangle(nil)
	a.Layout([]fyne.CanvasObject{obj}, fyne.NewSize(100, 100))
	assert.Equal(t, fyne.NewPos(15, -5), obj.Position())
}
