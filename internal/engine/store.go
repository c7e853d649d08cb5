package engine

import (
	"sync"

	"salesdash/internal/models"
)

// Dimension identifies a dictionary-encoded, filterable column.
type Dimension int

const (
	Region Dimension = iota
	Category
	Supplier
	Item
	Month

	NumDimensions = int(Month) + 1
)

var dimensionColumns = [NumDimensions]string{"Region", "Category", "Supplier", "Item", "Month"}
var dimensionKeys = [NumDimensions]string{"region", "category", "supplier", "item", "month"}

// Dimensions returns every dimension in display order.
func Dimensions() []Dimension {
	return []Dimension{Region, Category, Supplier, Item, Month}
}

// Column is the spreadsheet header of the dimension.
func (d Dimension) Column() string { return dimensionColumns[d] }

// Key is the lower-case name used in query strings and JSON.
func (d Dimension) Key() string { return dimensionKeys[d] }

func (d Dimension) String() string { return d.Key() }

// ParseDimension maps a key ("region") back to its Dimension.
func ParseDimension(key string) (Dimension, bool) {
	for i, k := range dimensionKeys {
		if k == key {
			return Dimension(i), true
		}
	}
	return 0, false
}

// Measure identifies a numeric column. Measures are optional in the source sheet.
type Measure int

const (
	SalesTotal Measure = iota
	Margin
	SalesQty
	SalesPrice

	NumMeasures = int(SalesPrice) + 1
)

var measureColumns = [NumMeasures]string{"Sales Total", "Margin", "Sales Qty", "Sales Price"}
var measureKeys = [NumMeasures]string{"sales_total", "margin", "sales_qty", "sales_price"}

// Measures returns every measure in display order.
func Measures() []Measure {
	return []Measure{SalesTotal, Margin, SalesQty, SalesPrice}
}

func (m Measure) Column() string { return measureColumns[m] }

func (m Measure) Key() string { return measureKeys[m] }

// ColumnStore holds the dataset in Struct-of-Arrays format. It is immutable
// once built and safe for concurrent readers.
type ColumnStore struct {
	// Measure columns (flat arrays); nil when the sheet lacks the column
	Measures [NumMeasures][]float64

	// Dictionary encoded IDs (0..N) per dimension
	IDs [NumDimensions][]int32

	// Dictionaries (ID -> string), first-appearance order
	Dicts [NumDimensions][]string

	// Source describes where the data came from (path and sheet).
	Source string

	index [NumDimensions]map[string]int32

	fullOnce sync.Once
	full     *partialAgg
}

// Len is the number of rows.
func (cs *ColumnStore) Len() int {
	return len(cs.IDs[Region])
}

// Has reports whether the measure column was present in the source.
func (cs *ColumnStore) Has(m Measure) bool {
	return cs.Measures[m] != nil
}

// Domain returns a copy of the distinct values of d in first-appearance order.
func (cs *ColumnStore) Domain(d Dimension) []string {
	return append([]string(nil), cs.Dicts[d]...)
}

// Value returns the dimension value of a row.
func (cs *ColumnStore) Value(d Dimension, row int32) string {
	return cs.Dicts[d][cs.IDs[d][row]]
}

// Amount returns the measure value of a row, 0 when the column is absent.
func (cs *ColumnStore) Amount(m Measure, row int32) float64 {
	if cs.Measures[m] == nil {
		return 0
	}
	return cs.Measures[m][row]
}

// Columns lists the headers present in the store, dimensions first.
func (cs *ColumnStore) Columns() []string {
	cols := make([]string, 0, NumDimensions+NumMeasures)
	for _, d := range Dimensions() {
		cols = append(cols, d.Column())
	}
	for _, m := range Measures() {
		if cs.Has(m) {
			cols = append(cols, m.Column())
		}
	}
	return cols
}

// Record materializes one row.
func (cs *ColumnStore) Record(row int32) models.Record {
	return models.Record{
		Region:     cs.Value(Region, row),
		Category:   cs.Value(Category, row),
		Supplier:   cs.Value(Supplier, row),
		Item:       cs.Value(Item, row),
		Month:      cs.Value(Month, row),
		SalesTotal: cs.Amount(SalesTotal, row),
		Margin:     cs.Amount(Margin, row),
		SalesQty:   cs.Amount(SalesQty, row),
		SalesPrice: cs.Amount(SalesPrice, row),
	}
}

func (cs *ColumnStore) lookup(d Dimension, value string) (int32, bool) {
	id, ok := cs.index[d][value]
	return id, ok
}

// Builder appends rows and dictionary-encodes the dimension columns.
type Builder struct {
	store *ColumnStore
}

// NewBuilder starts a store carrying only the given measure columns.
func NewBuilder(present ...Measure) *Builder {
	cs := &ColumnStore{}
	for d := range cs.index {
		cs.index[d] = make(map[string]int32)
	}
	for _, m := range present {
		cs.Measures[m] = make([]float64, 0)
	}
	return &Builder{store: cs}
}

// Append adds one row. Values for absent measures are ignored.
func (b *Builder) Append(dims [NumDimensions]string, amounts [NumMeasures]float64) {
	cs := b.store
	for d, v := range dims {
		id, ok := cs.index[d][v]
		if !ok {
			id = int32(len(cs.Dicts[d]))
			cs.Dicts[d] = append(cs.Dicts[d], v)
			cs.index[d][v] = id
		}
		cs.IDs[d] = append(cs.IDs[d], id)
	}
	for m := range cs.Measures {
		if cs.Measures[m] != nil {
			cs.Measures[m] = append(cs.Measures[m], amounts[m])
		}
	}
}

// Build returns the finished store. The builder must not be used afterwards.
func (b *Builder) Build(source string) *ColumnStore {
	cs := b.store
	cs.Source = source
	b.store = nil
	return cs
}

// FromRecords builds a store with every measure column present.
func FromRecords(records []models.Record) *ColumnStore {
	b := NewBuilder(Measures()...)
	for _, r := range records {
		b.Append(
			[NumDimensions]string{r.Region, r.Category, r.Supplier, r.Item, r.Month},
			[NumMeasures]float64{r.SalesTotal, r.Margin, r.SalesQty, r.SalesPrice},
		)
	}
	return b.Build("records")
}
