package events

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

type (
	// Hub distributes run events. Registered handlers are called one event
	// at a time, in publication order, on a single dispatcher goroutine.
	// Consumers created with NewConsumer receive every event independently
	Hub struct {
		topic    topic.Topic[*api.RunEvent]
		prod     topic.Producer[*api.RunEvent]
		cons     topic.Consumer[*api.RunEvent]
		stop     chan struct{}
		handlers []registration
		mu       sync.RWMutex
		runWG    sync.WaitGroup
		started  sync.Once
		stopOnce sync.Once
		closed   atomic.Bool
	}

	// Handler processes a single run event
	Handler func(*api.RunEvent) error

	registration struct {
		filter  Filter
		handler Handler
	}
)

// NewHub creates a hub. Handlers are not called until Start
func NewHub() *Hub {
	t := caravan.NewTopic[*api.RunEvent]()
	return &Hub{
		topic: t,
		prod:  t.NewProducer(),
		cons:  t.NewConsumer(),
		stop:  make(chan struct{}),
	}
}

// Start begins dispatching events to registered handlers
func (h *Hub) Start() {
	h.started.Do(func() {
		h.runWG.Go(func() {
			for {
				select {
				case <-h.stop:
					return
				case ev, ok := <-h.cons.Receive():
					if !ok {
						return
					}
					h.dispatch(ev)
				}
			}
		})
	})
}

// Publish enqueues an event. Events published after Flush are dropped
func (h *Hub) Publish(ev *api.RunEvent) {
	if ev == nil || ev.Type == "" || h.closed.Load() {
		return
	}
	message.Send(h.prod, ev)
}

// Handle registers a handler for the events accepted by filter. A nil
// filter accepts every event
func (h *Hub) Handle(filter Filter, handler Handler) {
	if filter == nil {
		filter = All
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, registration{
		filter:  filter,
		handler: handler,
	})
}

// NewConsumer creates an independent consumer of the hub's events. The
// caller must Close it when done
func (h *Hub) NewConsumer() topic.Consumer[*api.RunEvent] {
	return h.topic.NewConsumer()
}

// Flush dispatches any events still queued and stops the hub
func (h *Hub) Flush() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	h.runWG.Wait()
	if h.closed.Swap(true) {
		return
	}
	for {
		select {
		case ev, ok := <-h.cons.Receive():
			if !ok {
				h.close()
				return
			}
			h.dispatch(ev)
		default:
			h.close()
			return
		}
	}
}

func (h *Hub) close() {
	h.prod.Close()
	h.cons.Close()
}

func (h *Hub) dispatch(ev *api.RunEvent) {
	h.mu.RLock()
	regs := h.handlers
	h.mu.RUnlock()

	for _, reg := range regs {
		if reg.filter(ev) {
			h.call(reg.handler, ev)
		}
	}
}

func (h *Hub) call(handler Handler, ev *api.RunEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Run event handler panicked",
				slog.String("event_type", string(ev.Type)),
				log.RunID(ev.RunID),
				log.ErrorString(fmt.Sprint(r)))
		}
	}()
	if err := handler(ev); err != nil {
		slog.Error("Run event handler failed",
			slog.String("event_type", string(ev.Type)),
			log.RunID(ev.RunID),
			log.Error(err))
	}
}
