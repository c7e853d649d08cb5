// Package render turns aggregated dashboard data into user-facing output:
// formatted amounts, chart images, the HTML page and columnar exports.
package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter formats currency amounts with thousands grouping.
type Formatter struct {
	symbol string
	p      *message.Printer
}

func NewFormatter(symbol string) *Formatter {
	return &Formatter{symbol: symbol, p: message.NewPrinter(language.English)}
}

// Amount renders 1234.5 as "₹1,234.50".
func (f *Formatter) Amount(v float64) string {
	return f.symbol + f.p.Sprintf("%.2f", v)
}

// Whole renders 1234.5 as "₹1,235", used for chart labels.
func (f *Formatter) Whole(v float64) string {
	return f.symbol + f.p.Sprintf("%.0f", v)
}

// Percent renders 12.345 as "12.3%".
func (f *Formatter) Percent(v float64) string {
	return f.p.Sprintf("%.1f%%", v)
}
