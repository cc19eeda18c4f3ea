package events

import (
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/util"
)

// Filter selects the events a handler or subscriber is interested in
type Filter func(*api.RunEvent) bool

// All accepts every event
func All(*api.RunEvent) bool {
	return true
}

// None accepts no events
func None(*api.RunEvent) bool {
	return false
}

func FilterTypes(types ...api.EventType) Filter {
	lookup := util.SetOf(types...)
	return func(ev *api.RunEvent) bool {
		return lookup.Contains(ev.Type)
	}
}

func FilterRun(runID api.RunID) Filter {
	return func(ev *api.RunEvent) bool {
		return ev.RunID == runID
	}
}

func FilterWorkflow(wfID api.WorkflowID) Filter {
	return func(ev *api.RunEvent) bool {
		return ev.WorkflowID == wfID
	}
}

// FilterSubscription accepts the events matched by a client subscription
func FilterSubscription(sub *api.ClientSubscription) Filter {
	return sub.Matches
}

func AndFilters(filters ...Filter) Filter {
	return func(ev *api.RunEvent) bool {
		for _, filter := range filters {
			if !filter(ev) {
				return false
			}
		}
		return true
	}
}

func OrFilters(filters ...Filter) Filter {
	return func(ev *api.RunEvent) bool {
		for _, filter := range filters {
			if filter(ev) {
				return true
			}
		}
		return false
	}
}
