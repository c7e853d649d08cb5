package render

import (
	"errors"
	"fmt"
	"io"
	"slices"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"salesdash/internal/models"
	"salesdash/internal/session"
)

var (
	ErrUnknownChart = errors.New("unknown chart")
	// ErrNoChartData means the chart's section was skipped or has nothing
	// drawable (for example every value is zero).
	ErrNoChartData = errors.New("no data for chart")
)

const (
	ChartMonthlySales     = "monthly-sales"
	ChartCategorySales    = "category-sales"
	ChartTopItemsMargin   = "top-items-margin"
	ChartRegionComparison = "region-comparison"
)

// ChartInfo describes one chart of the dashboard.
type ChartInfo struct {
	Name      string
	Title     string
	Clickable bool
}

// Catalog lists every chart in page order.
func Catalog() []ChartInfo {
	out := []ChartInfo{
		{Name: ChartMonthlySales, Title: "Monthly Sales Total Trend"},
		{Name: ChartCategorySales, Title: "Sales Total by Product Category"},
		{Name: ChartTopItemsMargin, Title: "Top 10 Items by Margin"},
		{Name: ChartRegionComparison, Title: "Sales Total vs. Margin by Region"},
	}
	for _, c := range session.Charts() {
		out = append(out, ChartInfo{Name: c.Name, Title: c.Title + " (Click to Filter)", Clickable: true})
	}
	return out
}

// ChartRenderer draws dashboard charts as PNG images.
type ChartRenderer struct {
	f      *Formatter
	Width  int
	Height int
}

func NewChartRenderer(f *Formatter) *ChartRenderer {
	return &ChartRenderer{f: f, Width: 960, Height: 480}
}

// Render writes the named chart. highlight names the pie segment that is the
// current click override, if any.
func (r *ChartRenderer) Render(w io.Writer, name string, data *models.DashboardData, highlight string) error {
	if !slices.ContainsFunc(Catalog(), func(c ChartInfo) bool { return c.Name == name }) {
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
	if data == nil || data.Empty {
		return ErrNoChartData
	}
	switch name {
	case ChartMonthlySales:
		return r.line(w, "Monthly Sales Total Trend", data.MonthlySales)
	case ChartCategorySales:
		values := make([]chart.Value, len(data.CategorySales))
		for i, c := range data.CategorySales {
			values[i] = chart.Value{Label: c.Name, Value: c.Value}
		}
		return r.bar(w, "Sales Total by Product Category", values)
	case ChartTopItemsMargin:
		values := make([]chart.Value, len(data.TopItemsByMargin))
		for i, c := range data.TopItemsByMargin {
			values[i] = chart.Value{Label: c.Name, Value: c.Value}
		}
		return r.bar(w, "Top 10 Items by Margin", values)
	case ChartRegionComparison:
		values := make([]chart.Value, 0, 2*len(data.RegionComparison))
		for _, c := range data.RegionComparison {
			values = append(values,
				chart.Value{Label: c.Region + " Sales", Value: c.SalesTotal, Style: chart.Style{FillColor: chart.ColorBlue, StrokeColor: chart.ColorBlue}},
				chart.Value{Label: c.Region + " Margin", Value: c.Margin, Style: chart.Style{FillColor: chart.ColorGreen, StrokeColor: chart.ColorGreen}},
			)
		}
		return r.bar(w, "Sales Total vs. Margin by Region", values)
	case session.RegionSales.Name:
		return r.pie(w, session.RegionSales.Title, data.RegionSalesShare, highlight)
	case session.CategoryMargin.Name:
		return r.pie(w, session.CategoryMargin.Title, data.CategoryMarginShare, highlight)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
}

func (r *ChartRenderer) yFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return r.f.Whole(f)
	}
	return ""
}

func (r *ChartRenderer) line(w io.Writer, title string, months []models.MonthlyItem) error {
	if len(months) == 0 {
		return ErrNoChartData
	}
	xs := make([]float64, 0, len(months)+1)
	ys := make([]float64, 0, len(months)+1)
	ticks := make([]chart.Tick, 0, len(months))
	for i, m := range months {
		xs = append(xs, float64(i))
		ys = append(ys, m.Volume)
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: m.Month})
	}
	// go-chart needs a non-zero x range, and explicit ticks define it
	if len(xs) == 1 {
		xs = append(xs, 1)
		ys = append(ys, ys[0])
		ticks = append(ticks, chart.Tick{Value: 1, Label: ""})
	}

	yAxis := chart.YAxis{Name: "Sales Total", ValueFormatter: r.yFormatter}
	if lo, hi := bounds(ys); lo == hi {
		yAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	ch := chart.Chart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: "Month", Ticks: ticks},
		YAxis:      yAxis,
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Sales Total",
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2, DotColor: chart.ColorBlue, DotWidth: 4},
			},
		},
	}
	return ch.Render(chart.PNG, w)
}

func (r *ChartRenderer) bar(w io.Writer, title string, values []chart.Value) error {
	if len(values) == 0 {
		return ErrNoChartData
	}
	ys := make([]float64, len(values))
	for i, v := range values {
		ys[i] = v.Value
	}
	lo, hi := bounds(ys)
	if lo == 0 && hi == 0 {
		return ErrNoChartData
	}

	per := (r.Width - 120) / len(values)
	barWidth := max(4, per*2/3)
	bc := chart.BarChart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:   barWidth,
		BarSpacing: max(2, per-barWidth),
		YAxis:      chart.YAxis{ValueFormatter: r.yFormatter},
		Bars:       values,
	}
	if lo < 0 {
		bc.UseBaseValue = true
		bc.BaseValue = 0
	}
	return bc.Render(chart.PNG, w)
}

func (r *ChartRenderer) pie(w io.Writer, title string, shares []models.ShareItem, highlight string) error {
	values := make([]chart.Value, 0, len(shares))
	for _, s := range shares {
		if s.Value <= 0 {
			continue
		}
		v := chart.Value{Label: s.Label + " " + r.f.Percent(s.Percent), Value: s.Value}
		if s.Label == highlight {
			v.Style = chart.Style{StrokeColor: drawing.ColorBlack, StrokeWidth: 4}
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return ErrNoChartData
	}
	pie := chart.PieChart{
		Title:  title,
		Width:  r.Height,
		Height: r.Height,
		Values: values,
	}
	return pie.Render(chart.PNG, w)
}

func bounds(vs []float64) (lo, hi float64) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
