package events

import (
	"sync"
	"testing"
	"time"

	"aca-console/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPublishDeliversToTopicSubscribers(t *testing.T) {
	bus := NewBus(logger.Nop{})
	defer bus.Shutdown()

	var session, banner recorder
	bus.Subscribe(SessionChanged, session.handle)
	bus.Subscribe(BannerChanged, banner.handle)

	bus.Publish(SessionChanged, map[string]interface{}{"state": "running"})

	require.Eventually(t, func() bool { return session.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, banner.count())
	assert.Equal(t, "running", session.events[0].Data["state"])
	assert.False(t, session.events[0].Timestamp.IsZero())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(logger.Nop{})

	var rec recorder
	unsubscribe := bus.Subscribe(DisplayChanged, rec.handle)
	bus.Publish(DisplayChanged, nil)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	bus.Publish(DisplayChanged, nil)
	bus.Shutdown()
	assert.Equal(t, 1, rec.count())
}

func TestHandlerPanicDoesNotStopBus(t *testing.T) {
	bus := NewBus(logger.Nop{})
	defer bus.Shutdown()

	var rec recorder
	bus.Subscribe(KnobsChanged, func(Event) { panic("boom") })
	bus.Subscribe(KnobsChanged, rec.handle)

	bus.Publish(KnobsChanged, nil)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	bus.Publish(KnobsChanged, nil)
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestBurstWhileBusyDeliversLatestPerTopic(t *testing.T) {
	bus := NewBus(logger.Nop{})
	defer bus.Shutdown()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var rec recorder
	handler := func(e Event) {
		once.Do(func() {
			close(entered)
			<-release
		})
		rec.handle(e)
	}
	bus.Subscribe(SessionChanged, handler)
	bus.Subscribe(BannerChanged, handler)

	bus.Publish(SessionChanged, map[string]interface{}{"state": "running", "steps": 0})
	<-entered

	for i := 1; i <= 500; i++ {
		bus.Publish(SessionChanged, map[string]interface{}{"state": "running", "steps": i})
	}
	bus.Publish(BannerChanged, map[string]interface{}{"banner": "x"})
	bus.Publish(SessionChanged, map[string]interface{}{"state": "done", "steps": 501})
	close(release)

	require.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return rec.count() > 3 }, 50*time.Millisecond, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, SessionChanged, rec.events[1].Topic)
	assert.Equal(t, "done", rec.events[1].Data["state"])
	assert.Equal(t, 501, rec.events[1].Data["steps"])
	assert.Equal(t, BannerChanged, rec.events[2].Topic)
}

func TestShutdownDeliversPending(t *testing.T) {
	bus := NewBus(logger.Nop{})

	var rec recorder
	bus.Subscribe(DatasetChanged, rec.handle)
	bus.Subscribe(DisplayChanged, rec.handle)
	bus.Publish(DatasetChanged, nil)
	bus.Publish(DisplayChanged, nil)
	bus.Shutdown()

	assert.Equal(t, 2, rec.count())
}

func TestPublishAfterShutdownIsIgnored(t *testing.T) {
	bus := NewBus(logger.Nop{})
	bus.Shutdown()
	bus.Shutdown()

	assert.NotPanics(t, func() { bus.Publish(BannerChanged, nil) })
}
