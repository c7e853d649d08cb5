package engine

import (
	"github.com/hashicorp/go-set/v2"
)

// Selections maps each dimension to its effective selection set. A missing,
// nil or empty set leaves the dimension unconstrained.
type Selections map[Dimension]*set.Set[string]

// FullSelections selects the whole domain of every dimension.
func FullSelections(cs *ColumnStore) Selections {
	sel := make(Selections, NumDimensions)
	for _, d := range Dimensions() {
		sel[d] = set.From(cs.Dicts[d])
	}
	return sel
}

// View is a filtered table: a read-only subset of a store's rows, in
// ascending row order.
type View struct {
	store *ColumnStore
	rows  []int32
}

// All returns a view over every row.
func (cs *ColumnStore) All() *View {
	rows := make([]int32, cs.Len())
	for i := range rows {
		rows[i] = int32(i)
	}
	return &View{store: cs, rows: rows}
}

// Filter returns the rows matching every constrained dimension.
func (cs *ColumnStore) Filter(sel Selections) *View {
	return cs.All().Filter(sel)
}

// Filter narrows the view further. Dimensions combine with AND, values
// within one dimension's set with OR. The receiver is not modified.
func (v *View) Filter(sel Selections) *View {
	cs := v.store

	// 1. Per-dimension masks over dictionary IDs
	var masks [NumDimensions][]bool
	active := make([]Dimension, 0, NumDimensions)
	for d, s := range sel {
		if d < 0 || int(d) >= NumDimensions || s == nil || s.Empty() {
			continue
		}
		mask := make([]bool, len(cs.Dicts[d]))
		for _, value := range s.Slice() {
			if id, ok := cs.lookup(d, value); ok {
				mask[id] = true
			}
		}
		masks[d] = mask
		active = append(active, d)
	}
	if len(active) == 0 {
		return &View{store: cs, rows: v.rows}
	}

	// 2. Scan (array indexing, no hashing)
	out := make([]int32, 0, len(v.rows))
rows:
	for _, r := range v.rows {
		for _, d := range active {
			if !masks[d][cs.IDs[d][r]] {
				continue rows
			}
		}
		out = append(out, r)
	}
	return &View{store: cs, rows: out}
}

func (v *View) Store() *ColumnStore { return v.store }

func (v *View) Len() int { return len(v.rows) }

func (v *View) Empty() bool { return len(v.rows) == 0 }

// Rows returns the row indices of the view. Callers must not modify it.
func (v *View) Rows() []int32 { return v.rows }

// Page returns up to limit records starting at offset.
func (v *View) Page(offset, limit int) []int32 {
	if offset >= len(v.rows) {
		return nil
	}
	end := offset + limit
	if end > len(v.rows) {
		end = len(v.rows)
	}
	return v.rows[offset:end]
}
