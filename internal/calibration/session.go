// Package calibration runs the streaming auto-calibration protocol.
//
// A session sends one CalibrationParams message and then appends every
// CalibrationStep the service streams back, in arrival order, until a step
// with a terminal status arrives or the transport fails. Only one transport
// is open at a time; a new Start closes the previous one first, and a
// generation counter discards anything its reader still delivers.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"aca-console/internal/logger"
	"aca-console/internal/models"

	"github.com/google/uuid"
)

var (
	ErrHealthCheck   = errors.New("health check failed")
	ErrStreamEnded   = errors.New("stream ended without a terminal step")
	ErrMalformedStep = errors.New("malformed step message")
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateDone    State = "done"
)

type Transport interface {
	Send(params models.CalibrationParams) error
	Recv() (models.CalibrationStep, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Snapshot is a copy of the session state safe to hand to the UI.
type Snapshot struct {
	ID        string
	State     State
	Params    models.CalibrationParams
	Steps     []models.CalibrationStep
	LastError error
}

// Abnormal reports a session that finished without a terminal step.
func (s Snapshot) Abnormal() bool {
	return s.State == StateDone && s.LastError != nil
}

type Session struct {
	dialer Dialer
	health HealthChecker
	logger logger.Logger

	mu        sync.Mutex
	gen       uint64
	id        string
	state     State
	params    models.CalibrationParams
	steps     []models.CalibrationStep
	lastErr   error
	transport Transport
	onChange  func(Snapshot)
	closed    bool

	wg sync.WaitGroup
}

// NewSession builds an idle session. health may be nil to skip gating.
func NewSession(dialer Dialer, health HealthChecker, log logger.Logger) *Session {
	return &Session{
		dialer: dialer,
		health: health,
		logger: log,
		state:  StateIdle,
	}
}

func (s *Session) SetOnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Start refuses with ErrHealthCheck, leaving the state untouched, when the rig is not ready.
func (s *Session) Start(ctx context.Context, params models.CalibrationParams) error {
	if s.health != nil {
		if err := s.health.CheckHealth(ctx); err != nil {
			s.logger.Warning("CalibrationSession", "start refused", map[string]interface{}{
				"error": err.Error(),
			})
			return fmt.Errorf("%w: %v", ErrHealthCheck, err)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session shut down")
	}
	s.gen++
	gen := s.gen
	previous := s.transport
	s.transport = nil
	s.id = uuid.NewString()
	s.state = StateRunning
	s.params = params
	s.steps = nil
	s.lastErr = nil
	id := s.id
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	s.notify()

	s.logger.Info("CalibrationSession", "session starting", map[string]interface{}{
		"session_id":     id,
		"target_gv":      params.TargetGV,
		"tolerance":      params.Tolerance,
		"max_iterations": params.MaxIterations,
	})

	t, err := s.dialer.Dial(ctx)
	if err != nil {
		err = fmt.Errorf("dial: %w", err)
		s.end(gen, nil, err)
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		t.Close()
		return nil
	}
	s.transport = t
	s.mu.Unlock()

	if err := t.Send(params); err != nil {
		err = fmt.Errorf("send params: %w", err)
		s.end(gen, t, err)
		return err
	}

	s.wg.Add(1)
	go s.read(gen, id, t)
	return nil
}

func (s *Session) read(gen uint64, id string, t Transport) {
	defer s.wg.Done()

	for {
		step, err := t.Recv()
		if errors.Is(err, ErrMalformedStep) {
			s.logger.Warning("CalibrationSession", "skipping malformed step", map[string]interface{}{
				"session_id": id,
				"error":      err.Error(),
			})
			continue
		}
		if err != nil {
			s.end(gen, t, fmt.Errorf("%w: %v", ErrStreamEnded, err))
			return
		}

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.steps = append(s.steps, step)
		terminal := step.Status.Terminal()
		if terminal {
			s.state = StateDone
			s.transport = nil
		}
		s.mu.Unlock()

		s.logger.Debug("CalibrationSession", "step received", map[string]interface{}{
			"session_id": id,
			"step":       step.Step,
			"current_gv": step.CurrentGV,
			"status":     string(step.Status),
		})

		if terminal {
			t.Close()
			s.logger.Info("CalibrationSession", "session finished", map[string]interface{}{
				"session_id": id,
				"status":     string(step.Status),
				"steps":      step.Step,
			})
		}
		s.notify()

		if terminal {
			return
		}
	}
}

// end moves a still-current running session to done with cause recorded.
func (s *Session) end(gen uint64, t Transport, cause error) {
	s.mu.Lock()
	current := gen == s.gen && s.state == StateRunning
	if current {
		s.state = StateDone
		s.lastErr = cause
		s.transport = nil
	}
	id := s.id
	s.mu.Unlock()

	if t != nil {
		t.Close()
	}
	if !current {
		return
	}

	s.logger.Warning("CalibrationSession", "session ended abnormally", map[string]interface{}{
		"session_id": id,
		"error":      cause.Error(),
	})
	s.notify()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        s.id,
		State:     s.state,
		Params:    s.params,
		Steps:     append([]models.CalibrationStep(nil), s.steps...),
		LastError: s.lastErr,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Running() bool {
	return s.State() == StateRunning
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Shutdown closes the open transport and waits for its reader.
func (s *Session) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	t := s.transport
	s.transport = nil
	s.mu.Unlock()

	if t != nil {
		t.Close()
	}
	s.wg.Wait()
}
