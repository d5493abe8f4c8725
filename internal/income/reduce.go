package income

import "umkm/internal/core"

// Event is a completed mutation carrying the backend's canonical record.
type Event interface {
	apply(list []core.Income) []core.Income
}

type Created struct{ Income core.Income }

type Updated struct{ Income core.Income }

type Deleted struct{ ID core.ID }

// Reduce returns the list after ev. The input slice is never modified.
func Reduce(list []core.Income, ev Event) []core.Income {
	if ev == nil {
		return clone(list)
	}
	return ev.apply(list)
}

func (e Created) apply(list []core.Income) []core.Income {
	out := make([]core.Income, 0, len(list)+1)
	for _, r := range list {
		if r.ID != e.Income.ID {
			out = append(out, r)
		}
	}
	return append(out, e.Income)
}

func (e Updated) apply(list []core.Income) []core.Income {
	out := clone(list)
	for i := range out {
		if out[i].ID == e.Income.ID {
			out[i] = e.Income
		}
	}
	return out
}

func (e Deleted) apply(list []core.Income) []core.Income {
	out := make([]core.Income, 0, len(list))
	for _, r := range list {
		if r.ID != e.ID {
			out = append(out, r)
		}
	}
	return out
}

func clone(list []core.Income) []core.Income {
	return append(make([]core.Income, 0, len(list)), list...)
}
