package calibration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aca-console/internal/logger"
	"aca-console/internal/models"
	"aca-console/internal/rig/rigtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errClosed = errors.New("transport closed")

type message struct {
	step models.CalibrationStep
	err  error
}

type fakeTransport struct {
	inbox  chan message
	sent   chan models.CalibrationParams
	closed chan struct{}
	once   sync.Once
	// leaky transports keep delivering after Close, like a frame already in flight.
	leaky bool
}

func newFakeTransport(leaky bool) *fakeTransport {
	return &fakeTransport{
		inbox:  make(chan message, 16),
		sent:   make(chan models.CalibrationParams, 1),
		closed: make(chan struct{}),
		leaky:  leaky,
	}
}

func (f *fakeTransport) Send(p models.CalibrationParams) error {
	f.sent <- p
	return nil
}

func (f *fakeTransport) Recv() (models.CalibrationStep, error) {
	if f.leaky {
		m := <-f.inbox
		return m.step, m.err
	}
	select {
	case m := <-f.inbox:
		return m.step, m.err
	case <-f.closed:
		return models.CalibrationStep{}, errClosed
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) push(step models.CalibrationStep) {
	f.inbox <- message{step: step}
}

type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	dials      int
	err        error
}

func (d *fakeDialer) Dial(ctx context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	t := d.transports[d.dials]
	d.dials++
	return t, nil
}

type fakeHealth struct{ err error }

func (h fakeHealth) CheckHealth(ctx context.Context) error { return h.err }

var defaultParams = models.CalibrationParams{TargetGV: 140, Tolerance: 2, MaxIterations: 20}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, time.Second, 2*time.Millisecond)
}

func waitSteps(t *testing.T, s *Session, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.Snapshot().Steps) == n }, time.Second, 2*time.Millisecond)
}

func TestConvergedSessionEndsDone(t *testing.T) {
	tr := newFakeTransport(false)
	s := NewSession(&fakeDialer{transports: []*fakeTransport{tr}}, fakeHealth{}, logger.Nop{})
	defer s.Shutdown()

	assert.Equal(t, StateIdle, s.State())
	require.NoError(t, s.Start(context.Background(), defaultParams))
	assert.Equal(t, defaultParams, <-tr.sent)
	assert.Equal(t, StateRunning, s.State())

	tr.push(models.CalibrationStep{Step: 0, CurrentGV: 100, Status: models.StatusAdjusting})
	tr.push(models.CalibrationStep{Step: 1, CurrentGV: 139, Status: models.StatusConverged})

	waitState(t, s, StateDone)
	snap := s.Snapshot()
	require.Len(t, snap.Steps, 2)
	assert.Equal(t, 100.0, snap.Steps[0].CurrentGV)
	assert.Equal(t, 139.0, snap.Steps[1].CurrentGV)
	assert.NoError(t, snap.LastError)
	assert.False(t, snap.Abnormal())
	assert.True(t, tr.isClosed())
	assert.NotEmpty(t, snap.ID)
}

func TestStepsKeepArrivalOrder(t *testing.T) {
	tr := newFakeTransport(false)
	s := NewSession(&fakeDialer{transports: []*fakeTransport{tr}}, nil, logger.Nop{})
	defer s.Shutdown()

	require.NoError(t, s.Start(context.Background(), defaultParams))
	tr.push(models.CalibrationStep{Step: 3, Status: models.StatusAdjusting})
	tr.push(models.CalibrationStep{Step: 1, Status: models.StatusAdjusting})
	tr.push(models.CalibrationStep{Step: 2, Status: models.StatusFailed})

	waitState(t, s, StateDone)
	var order []int
	for _, st := range s.Snapshot().Steps {
		order = append(order, st.Step)
	}
	assert.Equal(t, []int{3, 1, 2}, order)
}

func TestRestartDiscardsPreviousStream(t *testing.T) {
	a := newFakeTransport(true)
	b := newFakeTransport(false)
	s := NewSession(&fakeDialer{transports: []*fakeTransport{a, b}}, nil, logger.Nop{})
	defer func() {
		a.inbox <- message{err: errClosed}
		s.Shutdown()
	}()

	require.NoError(t, s.Start(context.Background(), defaultParams))
	a.push(models.CalibrationStep{Step: 0, CurrentGV: 1, Status: models.StatusAdjusting})
	waitSteps(t, s, 1)

	second := defaultParams
	second.TargetGV = 120
	require.NoError(t, s.Start(context.Background(), second))
	assert.True(t, a.isClosed(), "previous transport closed before the new one opened")
	assert.Equal(t, second, <-b.sent)

	a.push(models.CalibrationStep{Step: 1, CurrentGV: 1, Status: models.StatusAdjusting})
	b.push(models.CalibrationStep{Step: 0, CurrentGV: 2, Status: models.StatusAdjusting})

	waitSteps(t, s, 1)
	assert.Never(t, func() bool {
		for _, st := range s.Snapshot().Steps {
			if st.CurrentGV == 1 {
				return true
			}
		}
		return false
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 120.0, s.Snapshot().Params.TargetGV)
}

func TestTransportErrorEndsWithoutStep(t *testing.T) {
	tr := newFakeTransport(false)
	s := NewSession(&fakeDialer{transports: []*fakeTransport{tr}}, nil, logger.Nop{})
	defer s.Shutdown()

	require.NoError(t, s.Start(context.Background(), defaultParams))
	tr.push(models.CalibrationStep{Step: 0, Status: models.StatusAdjusting})
	tr.inbox <- message{err: errors.New("connection reset")}

	waitState(t, s, StateDone)
	snap := s.Snapshot()
	assert.Len(t, snap.Steps, 1)
	assert.ErrorIs(t, snap.LastError, ErrStreamEnded)
	assert.True(t, snap.Abnormal())
	assert.True(t, tr.isClosed())
}

func TestMalformedStepIsSkipped(t *testing.T) {
	tr := newFakeTransport(false)
	s := NewSession(&fakeDialer{transports: []*fakeTransport{tr}}, nil, logger.Nop{})
	defer s.Shutdown()

	require.NoError(t, s.Start(context.Background(), defaultParams))
	tr.inbox <- message{err: ErrMalformedStep}
	tr.push(models.CalibrationStep{Step: 0, Status: models.StatusConverged})

	waitState(t, s, StateDone)
	assert.Len(t, s.Snapshot().Steps, 1)
	assert.NoError(t, s.Snapshot().LastError)
}

func TestHealthFailureRefusesStart(t *testing.T) {
	dialer := &fakeDialer{}
	s := NewSession(dialer, fakeHealth{err: errors.New("db down")}, logger.Nop{})
	defer s.Shutdown()

	err := s.Start(context.Background(), defaultParams)
	assert.ErrorIs(t, err, ErrHealthCheck)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 0, dialer.dials)
}

func TestDialFailureEndsDone(t *testing.T) {
	s := NewSession(&fakeDialer{err: errors.New("refused")}, nil, logger.Nop{})
	defer s.Shutdown()

	var mu sync.Mutex
	var states []State
	s.SetOnChange(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, snap.State)
	})

	err := s.Start(context.Background(), defaultParams)
	require.Error(t, err)
	assert.Equal(t, StateDone, s.State())
	assert.Error(t, s.Snapshot().LastError)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateRunning, StateDone}, states)
}

func TestWebSocketSessionAgainstFakeRig(t *testing.T) {
	srv := rigtest.New()
	defer srv.Close()

	s := NewSession(WebSocketDialer{URL: srv.StreamURL()}, nil, logger.Nop{})
	defer s.Shutdown()

	require.NoError(t, s.Start(context.Background(), defaultParams))
	waitState(t, s, StateDone)

	snap := s.Snapshot()
	require.Len(t, snap.Steps, 2)
	assert.Equal(t, models.StatusAdjusting, snap.Steps[0].Status)
	assert.Equal(t, models.StatusConverged, snap.Steps[1].Status)
	assert.NoError(t, snap.LastError)
	assert.Equal(t, []models.CalibrationParams{defaultParams}, srv.StreamRequests())
}

func TestWebSocketCloseWithoutTerminalStep(t *testing.T) {
	srv := rigtest.New()
	defer srv.Close()
	srv.SetScript(func(p models.CalibrationParams) []models.CalibrationStep {
		return []models.CalibrationStep{{Step: 0, CurrentGV: 90, Status: models.StatusAdjusting}}
	}, 0, false)

	s := NewSession(WebSocketDialer{URL: srv.StreamURL()}, nil, logger.Nop{})
	defer s.Shutdown()

	require.NoError(t, s.Start(context.Background(), defaultParams))
	waitState(t, s, StateDone)

	snap := s.Snapshot()
	assert.Len(t, snap.Steps, 1)
	assert.ErrorIs(t, snap.LastError, ErrStreamEnded)
}
