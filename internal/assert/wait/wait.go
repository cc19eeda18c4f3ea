package wait

import (
	"testing"
	"time"

	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/util"
)

type (
	Wait struct {
		t        *testing.T
		consumer topic.Consumer[*api.RunEvent]
		timeout  time.Duration
	}

	EventFilter func(*api.RunEvent) bool
)

const DefaultTimeout = time.Second * 5

func On(t *testing.T, consumer topic.Consumer[*api.RunEvent]) *Wait {
	return &Wait{
		t:        t,
		consumer: consumer,
		timeout:  DefaultTimeout,
	}
}

func (w *Wait) WithTimeout(timeout time.Duration) *Wait {
	res := *w
	res.timeout = timeout
	return &res
}

// ForEvents waits for matching events from the consumer and returns them
func (w *Wait) ForEvents(count int, filter EventFilter) []*api.RunEvent {
	w.t.Helper()

	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()

	res := make([]*api.RunEvent, 0, count)
	for len(res) < count {
		select {
		case ev, ok := <-w.consumer.Receive():
			if !ok {
				w.t.Fatalf(
					"event consumer closed before receiving %d events", count,
				)
			}
			if filter(ev) {
				res = append(res, ev)
			}
		case <-deadline.C:
			w.t.Fatalf("timeout waiting for %d events", count)
		}
	}
	return res
}

// ForEvent waits for a single matching event
func (w *Wait) ForEvent(filter EventFilter) *api.RunEvent {
	w.t.Helper()
	return w.ForEvents(1, filter)[0]
}

// And composes event filters and returns true when all match
func And(filters ...EventFilter) EventFilter {
	return func(ev *api.RunEvent) bool {
		for _, filter := range filters {
			if !filter(ev) {
				return false
			}
		}
		return true
	}
}

// Type creates a filter for a single event type
func Type(eventType api.EventType) EventFilter {
	return Types(eventType)
}

// Types creates a filter for the given event types
func Types(eventTypes ...api.EventType) EventFilter {
	lookup := util.SetOf(eventTypes...)
	return func(ev *api.RunEvent) bool {
		return lookup.Contains(ev.Type)
	}
}

// RunID matches events belonging to a run
func RunID(id api.RunID) EventFilter {
	return func(ev *api.RunEvent) bool {
		return ev.RunID == id
	}
}

// RunStarted matches the start of the given run
func RunStarted(id api.RunID) EventFilter {
	return And(Type(api.EventRunStarted), RunID(id))
}

// RunFinished matches the completion of the given run
func RunFinished(id api.RunID) EventFilter {
	return And(Type(api.EventRunFinished), RunID(id))
}

// StepStatus matches a step of a run entering the given status
func StepStatus(
	id api.RunID, stepID api.StepID, status api.StepStatus,
) EventFilter {
	return And(Type(api.EventStepStatus), RunID(id),
		func(ev *api.RunEvent) bool {
			return ev.StepID == stepID && ev.Status == status
		},
	)
}

// ApprovalRequested matches a gate of a run being put up for approval
func ApprovalRequested(id api.RunID, stepID api.StepID) EventFilter {
	return And(Type(api.EventApprovalRequested), RunID(id),
		func(ev *api.RunEvent) bool {
			return ev.StepID == stepID
		},
	)
}
