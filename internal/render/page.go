package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"slices"

	"github.com/labstack/echo/v4"

	"salesdash/internal/models"
	"salesdash/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageTemplate is the name of the dashboard template.
const PageTemplate = "dashboard"

// Page is the view model of the HTML dashboard.
type Page struct {
	View  *models.DashboardView
	Table *models.Table
	// Error replaces the whole content when the dataset is unavailable.
	Error  string
	Charts []PageChart
	// Query is the encoded sidebar selection, carried by chart URLs and
	// click forms.
	Query template.URL
}

type PageChart struct {
	ChartInfo
	Segments []Segment
}

// Segment is one clickable pie legend entry.
type Segment struct {
	Label   string
	Display string
	Active  bool
}

// NewPage assembles the page for view. Charts with nothing to draw are left
// out.
func NewPage(view *models.DashboardView, table *models.Table, query string, f *Formatter) *Page {
	p := &Page{View: view, Table: table, Query: template.URL(query)}
	if view == nil || view.Data == nil || view.Data.Empty {
		return p
	}
	data := view.Data
	for _, info := range Catalog() {
		pc := PageChart{ChartInfo: info}
		var shares []models.ShareItem
		switch info.Name {
		case ChartMonthlySales:
			if len(data.MonthlySales) == 0 {
				continue
			}
		case ChartCategorySales:
			if len(data.CategorySales) == 0 {
				continue
			}
		case ChartTopItemsMargin:
			if len(data.TopItemsByMargin) == 0 {
				continue
			}
		case ChartRegionComparison:
			if len(data.RegionComparison) == 0 {
				continue
			}
		case session.RegionSales.Name:
			shares = data.RegionSalesShare
		case session.CategoryMargin.Name:
			shares = data.CategoryMarginShare
		}
		if info.Clickable {
			if len(shares) == 0 {
				continue
			}
			c, _ := session.ChartByName(info.Name)
			active := view.Session.Overrides[c.Dimension.Key()]
			for _, s := range shares {
				pc.Segments = append(pc.Segments, Segment{
					Label:   s.Label,
					Display: f.Percent(s.Percent),
					Active:  s.Label == active,
				})
			}
		}
		p.Charts = append(p.Charts, pc)
	}
	return p
}

// Templates renders the HTML pages for echo.
type Templates struct {
	t *template.Template
}

func NewTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"selected": func(c models.Control, v string) bool {
			return slices.Contains(c.Selected, v)
		},
	}
	t, err := template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Templates{t: t}, nil
}

// Render implements echo.Renderer.
func (t *Templates) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return t.t.ExecuteTemplate(w, name, data)
}
