package eventbus

import (
	"github.com/patience-network/patience-go/log"
	"github.com/pkg/errors"
	"sync"
)

const DefaultBufferSize = 256

var ErrBusClosed = errors.New("event bus is closed")

type EventID string

type Event interface {
	EventID() EventID
}

type Handler func(e Event)

type Bus interface {
	// Subscribe registers handler for events with the given id. Handlers of one
	// subscription are invoked sequentially in publish order.
	Subscribe(id EventID, handler Handler) (*Subscription, error)
	// Listen returns a subscription whose events are read from Subscription.Events.
	Listen(id EventID) (*Subscription, error)
	Publish(e Event)
	Close()
}

// Subscription is a single consumer of one event id. Delivery is FIFO. When the
// consumer falls behind by more than the buffer size, new events are dropped and
// counted in Dropped; the first drop of a subscription is logged.
type Subscription struct {
	id      EventID
	bus     *bus
	ch      chan Event
	done    chan struct{}
	once    sync.Once
	dropped uint64
	mutex   sync.Mutex
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Dropped() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.dropped
}

func (s *Subscription) Unsubscribe() {
	s.bus.remove(s)
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

type bus struct {
	subscribers map[EventID][]*Subscription
	bufferSize  int
	closed      bool
	mutex       sync.RWMutex
	log         log.Logger
}

func New() Bus {
	return NewWithBuffer(DefaultBufferSize)
}

func NewWithBuffer(size int) Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &bus{
		subscribers: make(map[EventID][]*Subscription),
		bufferSize:  size,
		log:         log.New("component", "eventbus"),
	}
}

func (b *bus) Listen(id EventID) (*Subscription, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	s := &Subscription{
		id:   id,
		bus:  b,
		ch:   make(chan Event, b.bufferSize),
		done: make(chan struct{}),
	}
	b.subscribers[id] = append(b.subscribers[id], s)
	return s, nil
}

func (b *bus) Subscribe(id EventID, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	s, err := b.Listen(id)
	if err != nil {
		return nil, err
	}
	go func() {
		for e := range s.ch {
			handler(e)
		}
	}()
	return s, nil
}

func (b *bus) Publish(e Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subscribers[e.EventID()] {
		select {
		case s.ch <- e:
		default:
			s.mutex.Lock()
			s.dropped++
			first := s.dropped == 1
			s.mutex.Unlock()
			if first {
				b.log.Warn("Subscriber is too slow, dropping events", "event", e.EventID(), "buffer", b.bufferSize)
			}
		}
	}
}

func (b *bus) remove(s *Subscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	list := b.subscribers[s.id]
	for i, item := range list {
		if item == s {
			b.subscribers[s.id] = append(list[:i], list[i+1:]...)
			s.close()
			return
		}
	}
}

func (b *bus) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, list := range b.subscribers {
		for _, s := range list {
			s.close()
		}
		delete(b.subscribers, id)
	}
}
