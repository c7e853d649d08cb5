package session

import (
	"sort"

	"github.com/hashicorp/go-set/v2"

	"salesdash/internal/engine"
)

// EventKind distinguishes click events from the explicit reset action.
type EventKind int

const (
	ClickSegmentEvent EventKind = iota
	ResetAllEvent
)

// Event is one user interaction with the click filters.
type Event struct {
	Kind      EventKind
	Dimension engine.Dimension
	Value     string
}

// ClickSegment is a click on the segment for value v of dimension d.
func ClickSegment(d engine.Dimension, v string) Event {
	return Event{Kind: ClickSegmentEvent, Dimension: d, Value: v}
}

// ResetAll clears every clickable dimension.
func ResetAll() Event {
	return Event{Kind: ResetAllEvent}
}

// State is the set of click overrides of one session. It is a value: Apply
// returns a new State and never modifies the receiver.
type State struct {
	filters map[engine.Dimension]ClickFilter
}

// NewState returns a State with every given dimension clickable and Unset.
func NewState(clickable ...engine.Dimension) State {
	s := State{filters: make(map[engine.Dimension]ClickFilter, len(clickable))}
	for _, d := range clickable {
		s.filters[d] = ClickFilter{}
	}
	return s
}

// Clickable lists the clickable dimensions in dimension order.
func (s State) Clickable() []engine.Dimension {
	out := make([]engine.Dimension, 0, len(s.filters))
	for d := range s.filters {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Filter returns the override of d and whether d is clickable.
func (s State) Filter(d engine.Dimension) (ClickFilter, bool) {
	f, ok := s.filters[d]
	return f, ok
}

// Apply runs one event through the state machine. Clicks on a dimension
// that is not clickable, or with an empty value, are ignored.
func (s State) Apply(ev Event) (State, Transition) {
	switch ev.Kind {
	case ResetAllEvent:
		return NewState(s.Clickable()...), Reset
	case ClickSegmentEvent:
		cur, ok := s.filters[ev.Dimension]
		if !ok || ev.Value == "" {
			return s, None
		}
		next, t := cur.Click(ev.Value)
		return s.with(ev.Dimension, next), t
	default:
		return s, None
	}
}

func (s State) with(d engine.Dimension, f ClickFilter) State {
	out := State{filters: make(map[engine.Dimension]ClickFilter, len(s.filters))}
	for k, v := range s.filters {
		out.filters[k] = v
	}
	out.filters[d] = f
	return out
}

// Effective merges the sidebar selections with the overrides: a Set
// override wins unconditionally for its dimension. The sidebar map is not
// modified.
func (s State) Effective(sidebar engine.Selections) engine.Selections {
	out := make(engine.Selections, engine.NumDimensions)
	for d, sel := range sidebar {
		out[d] = sel
	}
	for d, f := range s.filters {
		if v, ok := f.Value(); ok {
			out[d] = set.From([]string{v})
		}
	}
	return out
}

// Overrides maps dimension keys to their Set values.
func (s State) Overrides() map[string]string {
	out := make(map[string]string, len(s.filters))
	for d, f := range s.filters {
		if v, ok := f.Value(); ok {
			out[d.Key()] = v
		}
	}
	return out
}
