package engine

import (
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"salesdash/internal/models"
)

// NoMatchMessage is reported when the effective selections exclude every row.
const NoMatchMessage = "No data matches the current filter selection. Please adjust your filters."

const (
	defaultTopItems = 10

	// Below this many rows per worker the goroutine overhead dominates.
	minChunkRows = 1024
)

// Options tunes aggregation.
type Options struct {
	// Workers bounds the parallel chunk count. <= 0 means runtime.NumCPU().
	Workers int
	// TopItems is the length of the items-by-margin ranking. <= 0 means 10.
	TopItems int
}

// partialAgg holds sums for a chunk of rows. Group arrays are indexed by
// dictionary ID so the hot loop never hashes.
type partialAgg struct {
	totals [NumMeasures]float64
	sums   [NumDimensions][NumMeasures][]float64
	counts [NumDimensions][]int
}

func newPartial(cs *ColumnStore) *partialAgg {
	p := &partialAgg{}
	for d := range p.counts {
		p.counts[d] = make([]int, len(cs.Dicts[d]))
		for m := range p.sums[d] {
			if cs.Measures[m] != nil {
				p.sums[d][m] = make([]float64, len(cs.Dicts[d]))
			}
		}
	}
	return p
}

func (p *partialAgg) add(cs *ColumnStore, r int32) {
	for m, col := range cs.Measures {
		if col == nil {
			continue
		}
		v := col[r]
		p.totals[m] += v
		for d := range p.sums {
			p.sums[d][m][cs.IDs[d][r]] += v
		}
	}
	for d := range p.counts {
		p.counts[d][cs.IDs[d][r]]++
	}
}

func (p *partialAgg) merge(o *partialAgg) {
	for m := range p.totals {
		p.totals[m] += o.totals[m]
	}
	for d := range p.sums {
		for m := range p.sums[d] {
			for i, v := range o.sums[d][m] {
				p.sums[d][m][i] += v
			}
		}
		for i, c := range o.counts[d] {
			p.counts[d][i] += c
		}
	}
}

// aggregate sums the view in parallel chunks. Partials are merged in chunk
// order so a given worker count always yields the same floating-point result.
func aggregate(v *View, workers int) *partialAgg {
	cs := v.store
	n := len(v.rows)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if limit := (n + minChunkRows - 1) / minChunkRows; workers > limit {
		workers = limit
	}
	if workers < 1 {
		workers = 1
	}
	chunkSize := (n + workers - 1) / workers

	parts := make([]*partialAgg, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		start := min(i*chunkSize, n)
		end := min(start+chunkSize, n)
		g.Go(func() error {
			p := newPartial(cs)
			for _, r := range v.rows[start:end] {
				p.add(cs, r)
			}
			parts[i] = p
			return nil
		})
	}
	_ = g.Wait()

	out := parts[0]
	for _, p := range parts[1:] {
		out.merge(p)
	}
	return out
}

// fullAgg is the aggregation of the whole, unfiltered dataset. It backs the
// clickable distribution charts and is computed once per store.
func (cs *ColumnStore) fullAgg() *partialAgg {
	cs.fullOnce.Do(func() {
		cs.full = aggregate(cs.All(), 0)
	})
	return cs.full
}

type group struct {
	id    int32
	name  string
	value float64
}

// groups returns the (dimension value, measure sum) pairs that occur in p,
// ordered by name. Blank values form no group.
func groups(cs *ColumnStore, p *partialAgg, d Dimension, m Measure) []group {
	out := make([]group, 0, len(cs.Dicts[d]))
	for id, c := range p.counts[d] {
		if c == 0 || cs.Dicts[d][id] == "" {
			continue
		}
		out = append(out, group{id: int32(id), name: cs.Dicts[d][id], value: p.sums[d][m][id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Shares returns the full-dataset distribution of measure m over dimension d,
// ordered by name. Segment order is stable for the lifetime of the store, so
// a positional click index always maps to the same value.
func (cs *ColumnStore) Shares(d Dimension, m Measure) []models.ShareItem {
	if !cs.Has(m) || cs.Len() == 0 {
		return nil
	}
	p := cs.fullAgg()
	gs := groups(cs, p, d, m)
	total := 0.0
	for _, g := range gs {
		total += g.value
	}
	out := make([]models.ShareItem, len(gs))
	for i, g := range gs {
		out[i] = models.ShareItem{Label: g.name, Value: g.value}
		if total != 0 {
			out[i].Percent = g.value / total * 100
		}
	}
	return out
}

// Segments returns only the labels of Shares(d, m).
func (cs *ColumnStore) Segments(d Dimension, m Measure) []string {
	shares := cs.Shares(d, m)
	out := make([]string, len(shares))
	for i, s := range shares {
		out[i] = s.Label
	}
	return out
}

// AverageSalesPrice is total sales over total quantity, 0 when the quantity
// sum is not positive.
func AverageSalesPrice(salesTotal, qty float64) float64 {
	if qty <= 0 {
		return 0
	}
	return salesTotal / qty
}

// Aggregate computes the dashboard sections from a filtered view. When the
// view is empty nothing is aggregated and Empty is set. The two distribution
// charts always describe the full dataset, not the view.
func Aggregate(v *View, opts Options) *models.DashboardData {
	cs := v.store
	data := &models.DashboardData{
		Rows:     v.Len(),
		KPIs:     make([]models.KPI, 0, 3),
		Warnings: make([]string, 0),
	}

	// 1. Halt on empty result
	if v.Empty() {
		data.Empty = true
		data.Warnings = append(data.Warnings, NoMatchMessage)
		return data
	}

	topN := opts.TopItems
	if topN <= 0 {
		topN = defaultTopItems
	}

	p := aggregate(v, opts.Workers)
	missing := func(section string, ms ...Measure) bool {
		var cols []string
		for _, m := range ms {
			if !cs.Has(m) {
				cols = append(cols, m.Column())
			}
		}
		if len(cols) == 0 {
			return false
		}
		data.Warnings = append(data.Warnings, fmt.Sprintf("Required columns (%s) for %s are missing.", quoteList(cols), section))
		return true
	}

	// 2. KPIs
	if cs.Has(SalesTotal) {
		data.KPIs = append(data.KPIs, models.KPI{Key: "total_sales", Label: "Total Sales", Value: p.totals[SalesTotal]})
	}
	if cs.Has(Margin) {
		data.KPIs = append(data.KPIs, models.KPI{Key: "total_margin", Label: "Total Margin", Value: p.totals[Margin]})
	}
	if cs.Has(SalesPrice) && cs.Has(SalesQty) && cs.Has(SalesTotal) {
		data.KPIs = append(data.KPIs, models.KPI{
			Key:   "avg_sales_price",
			Label: "Avg. Sales Price",
			Value: AverageSalesPrice(p.totals[SalesTotal], p.totals[SalesQty]),
		})
	}

	// 3. Monthly Sales Trend
	if !missing("Monthly Sales Trend", SalesTotal) {
		gs := groups(cs, p, Month, SalesTotal)
		orderMonths(gs)
		data.MonthlySales = make([]models.MonthlyItem, len(gs))
		for i, g := range gs {
			data.MonthlySales[i] = models.MonthlyItem{Month: g.name, Volume: g.value}
		}
	}

	// 4. Sales Total by Category
	if !missing("Category Sales Bar Chart", SalesTotal) {
		for _, g := range groups(cs, p, Category, SalesTotal) {
			data.CategorySales = append(data.CategorySales, models.TopItem{Name: g.name, Value: g.value})
		}
	}

	// 5. Top Items by Margin
	if !missing("Top 10 Items chart", Margin) {
		gs := groups(cs, p, Item, Margin)
		sort.SliceStable(gs, func(i, j int) bool { return gs[i].value > gs[j].value })
		if len(gs) > topN {
			gs = gs[:topN]
		}
		for _, g := range gs {
			data.TopItemsByMargin = append(data.TopItemsByMargin, models.TopItem{Name: g.name, Value: g.value})
		}
	}

	// 6. Regional Comparison
	if !missing("Regional Comparison Chart", SalesTotal, Margin) {
		for _, g := range groups(cs, p, Region, SalesTotal) {
			data.RegionComparison = append(data.RegionComparison, models.RegionComparison{
				Region:     g.name,
				SalesTotal: g.value,
				Margin:     p.sums[Region][Margin][g.id],
			})
		}
	}

	// 7. Contribution pies (full dataset)
	if !missing("Region Sales Pie Chart", SalesTotal) {
		data.RegionSalesShare = cs.Shares(Region, SalesTotal)
	}
	if !missing("Category Margin Pie Chart", Margin) {
		data.CategoryMarginShare = cs.Shares(Category, Margin)
	}

	return data
}

var (
	monthNameLayouts = []string{"Jan", "January"}
	monthDateLayouts = []string{
		"2006-01", "2006-01-02", "2006/01", "01/2006", "1/2006",
		"Jan 2006", "January 2006", "Jan-06", "Jan-2006",
		"01-02-06", "1/2/06", "1/2/2006", "2006-01-02 15:04:05",
	}
)

// parseMonth reads a month label. dated reports whether the label carried a
// year.
func parseMonth(s string) (t time.Time, dated, ok bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Date(0, time.Month(n), 1, 0, 0, 0, 0, time.UTC), false, true
		}
		return time.Time{}, false, false
	}
	for _, layout := range monthNameLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, true
		}
	}
	for _, layout := range monthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, true
		}
	}
	return time.Time{}, false, false
}

// orderMonths sorts chronologically when every label parses as a month or
// date and either all or none of them carry a year. Otherwise it restores
// first-appearance order.
func orderMonths(gs []group) {
	keys := make([]time.Time, len(gs))
	chronological := true
	datedCount := 0
	for i, g := range gs {
		t, dated, ok := parseMonth(g.name)
		if !ok {
			chronological = false
			break
		}
		if dated {
			datedCount++
		}
		keys[i] = t
	}
	if datedCount != 0 && datedCount != len(gs) {
		chronological = false
	}
	if !chronological {
		sort.SliceStable(gs, func(i, j int) bool { return gs[i].id < gs[j].id })
		return
	}
	idx := make([]int, len(gs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]].Before(keys[idx[b]]) })
	sorted := make([]group, len(gs))
	for i, k := range idx {
		sorted[i] = gs[k]
	}
	copy(gs, sorted)
}
