// Package manual pushes operator gain and black-level changes to the rig.
package manual

import (
	"context"
	"sync"
	"time"

	"aca-console/internal/logger"
	"aca-console/internal/models"
	"aca-console/internal/rig"
)

type Rig interface {
	SetParameters(ctx context.Context, p models.CameraParams) error
	Capture(ctx context.Context) (models.CaptureResponse, error)
	ResolveURL(ref string) string
}

// Display receives the refreshed manual frame.
type Display interface {
	ClearPreview()
	ShowManual(url string)
}

type SessionState interface {
	Running() bool
}

// Loop is a trailing-edge debounce: only the last change in a burst reaches the rig.
type Loop struct {
	rig     Rig
	display Display
	session SessionState
	delay   time.Duration
	logger  logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(r Rig, display Display, session SessionState, delay time.Duration, log logger.Logger) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		rig:     r,
		display: display,
		session: session,
		delay:   delay,
		logger:  log,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit reschedules the push; ignored while a calibration session is running.
func (l *Loop) Submit(p models.CameraParams) {
	if l.session.Running() {
		l.Cancel()
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}

	l.stopTimerLocked()
	l.gen++
	gen := l.gen

	l.wg.Add(1)
	l.timer = time.AfterFunc(l.delay, func() {
		defer l.wg.Done()
		l.fire(gen, p)
	})
}

// Cancel drops any pending push.
func (l *Loop) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimerLocked()
	l.gen++
}

func (l *Loop) stopTimerLocked() {
	if l.timer != nil && l.timer.Stop() {
		l.wg.Done()
	}
	l.timer = nil
}

func (l *Loop) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gen == l.gen && !l.stopped
}

func (l *Loop) fire(gen uint64, p models.CameraParams) {
	if !l.current(gen) || l.session.Running() {
		return
	}

	l.display.ClearPreview()

	if err := l.rig.SetParameters(l.ctx, p); err != nil {
		l.logger.Debug("ManualAdjust", "set parameters failed", map[string]interface{}{
			"gain":        p.Gain,
			"black_level": p.BlackLevel,
			"error":       err.Error(),
		})
		return
	}

	capture, err := l.rig.Capture(l.ctx)
	if err != nil {
		l.logger.Debug("ManualAdjust", "capture failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if !l.current(gen) {
		return
	}

	url := rig.CacheBust(l.rig.ResolveURL(capture.ImageURL), l.now())
	l.display.ShowManual(url)

	l.logger.Debug("ManualAdjust", "manual frame refreshed", map[string]interface{}{
		"gain":        p.Gain,
		"black_level": p.BlackLevel,
		"gv_mean":     capture.Metadata.GVMean,
	})
}

// Shutdown cancels in-flight requests and waits for them.
func (l *Loop) Shutdown() {
	l.mu.Lock()
	l.stopped = true
	l.stopTimerLocked()
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}
