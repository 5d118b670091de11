package viewport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aca-console/internal/geometry"
	"aca-console/internal/logger"
	"aca-console/internal/models"
	"aca-console/internal/processing/adjust"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedLoader blocks each URL until released, so tests control completion order.
type gatedLoader struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	frames map[string]*models.Frame
	errs   map[string]error
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{
		gates:  make(map[string]chan struct{}),
		frames: make(map[string]*models.Frame),
		errs:   make(map[string]error),
	}
}

func (l *gatedLoader) gate(url string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.gates[url]
	if !ok {
		ch = make(chan struct{})
		l.gates[url] = ch
	}
	return ch
}

func (l *gatedLoader) release(url string) { close(l.gate(url)) }

func (l *gatedLoader) Load(ctx context.Context, url string) (*models.Frame, error) {
	<-l.gate(url)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.errs[url]; err != nil {
		return nil, err
	}
	return l.frames[url], nil
}

func solidFrame(w, h int, r, g, b byte) *models.Frame {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	return &models.Frame{Width: w, Height: h, Pix: pix}
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for load")
	}
}

func loaded(t *testing.T, frame *models.Frame) *Viewport {
	t.Helper()
	loader := newGatedLoader()
	loader.frames["a"] = frame
	loader.release("a")
	vp := New(loader, logger.Nop{})
	wait(t, vp.LoadImage("a"))
	return vp
}

func TestProbeScenario(t *testing.T) {
	vp := loaded(t, solidFrame(100, 100, 30, 60, 91))
	defer vp.Shutdown()

	vp.Zoom(1)
	for i := 0; i < 9; i++ {
		vp.Zoom(1)
	}
	require.InDelta(t, 2.0, vp.View().Scale, 1e-9)

	p, ok := vp.Probe(50, 50)
	require.True(t, ok)
	assert.Equal(t, 25, p.ImageX)
	assert.Equal(t, 25, p.ImageY)
	assert.Equal(t, uint8(30), p.R)
	assert.Equal(t, 60, p.Gray)

	_, ok = vp.Probe(250, 50)
	assert.False(t, ok)
	_, ok = vp.Probe(-1, 10)
	assert.False(t, ok)
}

func TestProbeWithoutImage(t *testing.T) {
	vp := New(newGatedLoader(), logger.Nop{})
	defer vp.Shutdown()

	_, ok := vp.Probe(1, 1)
	assert.False(t, ok)
	assert.True(t, vp.Status().Empty)
}

func TestProbeReadsAdjustedBuffer(t *testing.T) {
	vp := loaded(t, solidFrame(4, 4, 100, 100, 100))
	defer vp.Shutdown()

	vp.SetAdjustment(true, adjust.Params{Gain: 24, BlackLevel: 5})
	p, ok := vp.Probe(1, 1)
	require.True(t, ok)
	assert.Equal(t, uint8(205), p.R)
	assert.Equal(t, 205, p.Gray)

	vp.SetAdjustment(false, adjust.Params{Gain: 24, BlackLevel: 5})
	p, _ = vp.Probe(1, 1)
	assert.Equal(t, uint8(100), p.R)
}

func TestLoadResetsView(t *testing.T) {
	loader := newGatedLoader()
	loader.frames["a"] = solidFrame(10, 10, 1, 1, 1)
	loader.frames["b"] = solidFrame(20, 10, 1, 1, 1)
	loader.release("a")
	loader.release("b")

	vp := New(loader, logger.Nop{})
	defer vp.Shutdown()

	wait(t, vp.LoadImage("a"))
	vp.Pan(30, -4)
	vp.Zoom(-1)

	wait(t, vp.LoadImage("b"))
	assert.Equal(t, geometry.Identity(), vp.View())
	assert.Equal(t, 20, vp.Status().Width)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	loader := newGatedLoader()
	loader.frames["old"] = solidFrame(8, 8, 255, 0, 0)
	loader.frames["new"] = solidFrame(4, 4, 0, 255, 0)

	vp := New(loader, logger.Nop{})
	defer vp.Shutdown()

	oldDone := vp.LoadImage("old")
	newDone := vp.LoadImage("new")

	loader.release("new")
	wait(t, newDone)
	loader.release("old")
	wait(t, oldDone)

	s := vp.Status()
	assert.Equal(t, "new", s.URL)
	assert.Equal(t, 4, s.Width)
	p, ok := vp.Probe(0, 0)
	require.True(t, ok)
	assert.Equal(t, uint8(255), p.G)
}

func TestDecodeFailureLeavesEmptyState(t *testing.T) {
	loader := newGatedLoader()
	loader.frames["good"] = solidFrame(4, 4, 1, 2, 3)
	loader.errs["bad"] = errors.New("corrupt")
	loader.release("good")
	loader.release("bad")

	vp := New(loader, logger.Nop{})
	defer vp.Shutdown()

	wait(t, vp.LoadImage("good"))
	wait(t, vp.LoadImage("bad"))

	s := vp.Status()
	assert.True(t, s.Empty)
	assert.EqualError(t, s.LoadErr, "corrupt")
	_, ok := vp.Probe(0, 0)
	assert.False(t, ok)

	img := vp.Render()
	assert.NotNil(t, img)
}

func TestRenderAppliesTransform(t *testing.T) {
	vp := loaded(t, solidFrame(2, 2, 200, 10, 10))
	defer vp.Shutdown()

	vp.Resize(10, 10)
	vp.Pan(4, 4)
	img := vp.Render()
	require.Equal(t, 10, img.Bounds().Dx())

	inside := img.RGBAAt(4, 4)
	assert.Equal(t, uint8(200), inside.R)
	outside := img.RGBAAt(0, 0)
	assert.Equal(t, background, outside)
	past := img.RGBAAt(6, 6)
	assert.Equal(t, background, past)

	vp.Zoom(1)
	assert.Equal(t, 10, vp.Render().Bounds().Dx(), "resize and zoom are independent")
}

func TestOnChangeFires(t *testing.T) {
	vp := loaded(t, solidFrame(2, 2, 1, 1, 1))
	defer vp.Shutdown()

	var mu sync.Mutex
	calls := 0
	vp.SetOnChange(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	vp.Pan(1, 1)
	vp.Zoom(1)
	vp.SetAdjustment(true, adjust.Params{Gain: 1})
	vp.SetAdjustment(true, adjust.Params{Gain: 1})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}
