package session

import (
	"slices"

	"salesdash/internal/engine"
)

// Chart is a clickable distribution chart.
type Chart struct {
	Name      string
	Title     string
	Dimension engine.Dimension
	Measure   engine.Measure
}

var (
	RegionSales    = Chart{Name: "region-sales", Title: "Region Wise Sales Percentage", Dimension: engine.Region, Measure: engine.SalesTotal}
	CategoryMargin = Chart{Name: "category-margin", Title: "Category Wise Margin Distribution", Dimension: engine.Category, Measure: engine.Margin}
)

// Charts returns the clickable charts.
func Charts() []Chart {
	return []Chart{RegionSales, CategoryMargin}
}

// ClickableDimensions returns the dimensions backed by a clickable chart.
func ClickableDimensions() []engine.Dimension {
	out := make([]engine.Dimension, 0, 2)
	for _, c := range Charts() {
		out = append(out, c.Dimension)
	}
	return out
}

// ChartByName looks a clickable chart up by name.
func ChartByName(name string) (Chart, bool) {
	for _, c := range Charts() {
		if c.Name == name {
			return c, true
		}
	}
	return Chart{}, false
}

// Click is a raw click on a chart segment. Label is the segment's domain
// value; PointIndex is the positional fallback for clients that only report
// the index of the clicked point.
type Click struct {
	Chart      string
	Label      string
	PointIndex *int
}

// Resolve maps a click to a ClickSegment event. Segments are taken from the
// unfiltered dataset so every domain value stays clickable. It reports false
// when the click cannot be mapped to a concrete value.
func Resolve(cs *engine.ColumnStore, c Click) (Event, bool) {
	chart, ok := ChartByName(c.Chart)
	if !ok {
		return Event{}, false
	}
	segments := cs.Segments(chart.Dimension, chart.Measure)

	if c.Label != "" {
		if slices.Contains(segments, c.Label) {
			return ClickSegment(chart.Dimension, c.Label), true
		}
		return Event{}, false
	}
	if c.PointIndex != nil {
		i := *c.PointIndex
		if i >= 0 && i < len(segments) {
			return ClickSegment(chart.Dimension, segments[i]), true
		}
	}
	return Event{}, false
}
