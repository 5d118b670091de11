package shutdown

import (
	"sync"
	"testing"
	"time"

	"aca-console/internal/logger"

	"github.com/stretchr/testify/assert"
)

type orderRecorder struct {
	mu    sync.Mutex
	names []string
}

type stub struct {
	name  string
	rec   *orderRecorder
	block chan struct{}
}

func (s *stub) Shutdown() {
	if s.block != nil {
		<-s.block
	}
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.rec.names = append(s.rec.names, s.name)
}

func TestShutdownRunsInReverseOrderOnce(t *testing.T) {
	rec := &orderRecorder{}
	m := NewManager(logger.Nop{}, time.Second)
	m.Register("bus", &stub{name: "bus", rec: rec})
	m.Register("viewport", &stub{name: "viewport", rec: rec})
	m.Register("session", &stub{name: "session", rec: rec})

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, []string{"session", "viewport", "bus"}, rec.names)
	assert.Error(t, m.Context().Err())

	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestShutdownSkipsPastSlowComponent(t *testing.T) {
	rec := &orderRecorder{}
	block := make(chan struct{})
	defer close(block)

	m := NewManager(logger.Nop{}, 20*time.Millisecond)
	m.Register("fast", &stub{name: "fast", rec: rec})
	m.Register("slow", &stub{name: "slow", rec: rec, block: block})

	start := time.Now()
	m.Shutdown()

	assert.Less(t, time.Since(start), time.Second)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"fast"}, rec.names)
}
