// Package viewport owns the displayed frame, its pan/zoom state and pixel probing.
package viewport

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"aca-console/internal/geometry"
	"aca-console/internal/logger"
	"aca-console/internal/models"
	"aca-console/internal/processing/adjust"

	xdraw "golang.org/x/image/draw"
)

// Loader fetches and decodes the image at url.
type Loader interface {
	Load(ctx context.Context, url string) (*models.Frame, error)
}

// Probe describes the pixel under the cursor.
type Probe struct {
	ImageX int
	ImageY int
	Gray   int
	R      uint8
	G      uint8
	B      uint8
}

// Status is a read-only snapshot for the renderer.
type Status struct {
	URL     string
	Empty   bool
	LoadErr error
	View    geometry.ViewState
	Width   int
	Height  int
}

var background = color.RGBA{R: 0x0b, G: 0x0d, B: 0x11, A: 0xff}

type Viewport struct {
	loader Loader
	logger logger.Logger

	mu       sync.Mutex
	view     geometry.ViewState
	raw      *models.Frame
	adjusted *models.Frame
	adjustOn bool
	params   adjust.Params
	width    int
	height   int
	onChange func()

	url       string
	requestID uint64
	loadErr   error
	cancel    context.CancelFunc

	ctx      context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup
}

func New(loader Loader, log logger.Logger) *Viewport {
	ctx, cancel := context.WithCancel(context.Background())
	return &Viewport{
		loader:   loader,
		logger:   log,
		view:     geometry.Identity(),
		ctx:      ctx,
		shutdown: cancel,
	}
}

// SetOnChange registers a callback fired after any state change that affects rendering.
func (v *Viewport) SetOnChange(fn func()) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// LoadImage starts fetching url and supersedes any load still in flight.
// The returned channel closes once the result has been applied or discarded.
func (v *Viewport) LoadImage(url string) <-chan struct{} {
	done := make(chan struct{})

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.requestID++
	id := v.requestID
	v.url = url
	ctx, cancel := context.WithCancel(v.ctx)
	v.cancel = cancel
	v.mu.Unlock()

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer close(done)
		defer cancel()

		frame, err := v.loader.Load(ctx, url)
		v.apply(id, url, frame, err)
	}()

	return done
}

func (v *Viewport) apply(id uint64, url string, frame *models.Frame, err error) {
	v.mu.Lock()
	if id != v.requestID {
		v.mu.Unlock()
		v.logger.Debug("Viewport", "stale load discarded", map[string]interface{}{"url": url})
		return
	}
	v.cancel = nil

	if err != nil {
		v.raw = nil
		v.adjusted = nil
		v.loadErr = err
		v.mu.Unlock()
		v.logger.Warning("Viewport", "image load failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		v.notify()
		return
	}

	v.raw = frame
	v.loadErr = nil
	v.view = geometry.Identity()
	v.recomputeLocked()
	v.mu.Unlock()

	v.logger.Debug("Viewport", "image loaded", map[string]interface{}{
		"url":    url,
		"width":  frame.Width,
		"height": frame.Height,
	})
	v.notify()
}

// Clear drops the current frame and abandons any pending load.
func (v *Viewport) Clear() {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.requestID++
	v.url = ""
	v.raw = nil
	v.adjusted = nil
	v.loadErr = nil
	v.mu.Unlock()
	v.notify()
}

// SetAdjustment toggles the gain/black preview; disabled means the raw frame is shown as is.
func (v *Viewport) SetAdjustment(enabled bool, p adjust.Params) {
	v.mu.Lock()
	if v.adjustOn == enabled && v.params == p {
		v.mu.Unlock()
		return
	}
	v.adjustOn = enabled
	v.params = p
	v.recomputeLocked()
	v.mu.Unlock()
	v.notify()
}

func (v *Viewport) recomputeLocked() {
	if v.raw == nil || !v.adjustOn {
		v.adjusted = nil
		return
	}
	v.adjusted = adjust.Apply(v.raw, v.params)
}

func (v *Viewport) activeLocked() *models.Frame {
	if v.adjusted != nil {
		return v.adjusted
	}
	return v.raw
}

func (v *Viewport) Pan(dx, dy float64) {
	v.mu.Lock()
	v.view = v.view.Panned(dx, dy)
	v.mu.Unlock()
	v.notify()
}

func (v *Viewport) Zoom(deltaSign int) {
	v.mu.Lock()
	v.view = v.view.Zoomed(deltaSign)
	v.mu.Unlock()
	v.notify()
}

func (v *Viewport) View() geometry.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view
}

// Resize sets the render surface size; the view state is untouched.
func (v *Viewport) Resize(width, height int) {
	v.mu.Lock()
	v.width = width
	v.height = height
	v.mu.Unlock()
}

// Probe samples the active buffer under the screen point.
func (v *Viewport) Probe(screenX, screenY float64) (Probe, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	frame := v.activeLocked()
	if frame == nil {
		return Probe{}, false
	}

	x, y := geometry.ScreenToImage(screenX, screenY, v.view)
	if x < 0 || y < 0 || x >= float64(frame.Width) || y >= float64(frame.Height) {
		return Probe{}, false
	}

	ix, iy := int(math.Floor(x)), int(math.Floor(y))
	idx := frame.Offset(ix, iy)
	r, g, b := frame.Pix[idx], frame.Pix[idx+1], frame.Pix[idx+2]

	return Probe{
		ImageX: ix,
		ImageY: iy,
		Gray:   int(math.Round(float64(int(r)+int(g)+int(b)) / 3)),
		R:      r,
		G:      g,
		B:      b,
	}, true
}

// Render draws the active buffer through the view transform onto a surface of the current size.
func (v *Viewport) Render() *image.RGBA {
	v.mu.Lock()
	width, height := v.width, v.height
	view := v.view
	frame := v.activeLocked()
	v.mu.Unlock()

	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	if frame != nil {
		src := frame.Image()
		xdraw.NearestNeighbor.Transform(dst, view.Affine(), src, src.Bounds(), xdraw.Over, nil)
	}
	return dst
}

func (v *Viewport) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Status{
		URL:     v.url,
		Empty:   v.raw == nil,
		LoadErr: v.loadErr,
		View:    v.view,
	}
	if v.raw != nil {
		s.Width, s.Height = v.raw.Width, v.raw.Height
	}
	return s
}

func (v *Viewport) notify() {
	v.mu.Lock()
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Shutdown cancels in-flight loads and waits for them to return.
func (v *Viewport) Shutdown() {
	v.shutdown()
	v.wg.Wait()
}
