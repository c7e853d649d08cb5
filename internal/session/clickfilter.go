// Package session holds the per-user chart click overrides and the state
// machine that reconciles clicks against them.
package session

// Transition describes what an event did to the click state. Every
// transition other than None requires the dashboard to be recomputed.
type Transition int

const (
	// None: the event was ignored and nothing needs recomputing.
	None Transition = iota
	// Set: Unset -> Set(v).
	Set
	// Replace: Set(v) -> Set(w), w != v.
	Replace
	// Clear: Set(v) -> Unset because v was clicked again.
	Clear
	// Reset: every clickable dimension forced to Unset.
	Reset
)

var transitionNames = [...]string{"none", "set", "replace", "clear", "reset"}

func (t Transition) String() string {
	if int(t) < len(transitionNames) {
		return transitionNames[t]
	}
	return "unknown"
}

// Dirty reports whether downstream stages must be recomputed.
func (t Transition) Dirty() bool { return t != None }

// ClickFilter is the override of one clickable dimension. The zero value is
// Unset; a Set filter holds exactly one value.
type ClickFilter struct {
	value string
	set   bool
}

// Value returns the override value and whether it is Set.
func (f ClickFilter) Value() (string, bool) { return f.value, f.set }

func (f ClickFilter) IsSet() bool { return f.set }

// Click applies a segment click. Clicking the current value toggles the
// override off; clicking any other value replaces it.
func (f ClickFilter) Click(v string) (ClickFilter, Transition) {
	switch {
	case !f.set:
		return ClickFilter{value: v, set: true}, Set
	case f.value == v:
		return ClickFilter{}, Clear
	default:
		return ClickFilter{value: v, set: true}, Replace
	}
}
