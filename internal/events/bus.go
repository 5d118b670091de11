// Package events fans console state changes out to the UI.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aca-console/internal/logger"
)

type Topic string

const (
	SessionChanged Topic = "session.changed"
	DisplayChanged Topic = "display.changed"
	BannerChanged  Topic = "banner.changed"
	KnobsChanged   Topic = "knobs.changed"
	DatasetChanged Topic = "dataset.changed"
)

type Event struct {
	Topic     Topic
	Timestamp time.Time
	Data      map[string]interface{}
}

type Handler func(event Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus keeps at most one pending event per topic. A publish on a topic that is
// still waiting for delivery replaces its data instead of queueing another event,
// so the latest state of every topic always reaches subscribers.
type Bus struct {
	subscribers map[Topic][]subscription
	nextID      uint64
	mu          sync.RWMutex

	pendingMu sync.Mutex
	order     []Topic
	pending   map[Topic]Event
	wake      chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    logger.Logger
}

func NewBus(log logger.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	bus := &Bus{
		subscribers: make(map[Topic][]subscription),
		pending:     make(map[Topic]Event),
		wake:        make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		logger:      log,
	}

	bus.startWorker()
	return bus
}

// Publish never blocks.
func (b *Bus) Publish(topic Topic, data map[string]interface{}) {
	event := Event{Topic: topic, Timestamp: time.Now(), Data: data}

	select {
	case <-b.ctx.Done():
		return
	default:
	}

	b.pendingMu.Lock()
	if _, queued := b.pending[topic]; queued {
		b.logger.Debug("EventBus", "event coalesced", map[string]interface{}{
			"topic": string(topic),
		})
	} else {
		b.order = append(b.order, topic)
	}
	b.pending[topic] = event
	b.pendingMu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Subscribe returns a function that removes the handler.
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers[topic] = append(b.subscribers[topic], subscription{id: id, handler: handler})

	return func() { b.unsubscribe(topic, id) }
}

func (b *Bus) unsubscribe(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, s := range subs {
		if s.id == id {
			b.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Shutdown delivers what is still pending and stops the worker.
func (b *Bus) Shutdown() {
	b.closeOnce.Do(func() {
		b.cancel()
		b.wg.Wait()
	})
}

func (b *Bus) startWorker() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		for {
			select {
			case <-b.wake:
				b.drain()
			case <-b.ctx.Done():
				b.drain()
				return
			}
		}
	}()
}

// drain delivers every pending event in first-publish order.
func (b *Bus) drain() {
	for {
		b.pendingMu.Lock()
		if len(b.order) == 0 {
			b.pendingMu.Unlock()
			return
		}
		topic := b.order[0]
		b.order = b.order[1:]
		event := b.pending[topic]
		delete(b.pending, topic)
		b.pendingMu.Unlock()

		b.dispatch(event)
	}
}

// dispatch runs handlers in order on the worker goroutine.
func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[event.Topic]))
	copy(subs, b.subscribers[event.Topic])
	b.mu.RUnlock()

	for _, s := range subs {
		b.safeHandle(s.handler, event)
	}
}

func (b *Bus) safeHandle(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("EventBus", fmt.Errorf("handler panic: %v", r), map[string]interface{}{
				"topic": string(event.Topic),
			})
		}
	}()
	h(event)
}
