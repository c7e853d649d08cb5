package models

// Record is one dataset row.
type Record struct {
	Region     string  `json:"region"`
	Category   string  `json:"category"`
	Supplier   string  `json:"supplier"`
	Item       string  `json:"item"`
	Month      string  `json:"month"`
	SalesTotal float64 `json:"sales_total"`
	Margin     float64 `json:"margin"`
	SalesQty   float64 `json:"sales_qty"`
	SalesPrice float64 `json:"sales_price"`
}

type DashboardData struct {
	Rows                int                `json:"rows"`
	Empty               bool               `json:"empty"`
	KPIs                []KPI              `json:"kpis"`
	MonthlySales        []MonthlyItem      `json:"monthly_sales,omitempty"`
	CategorySales       []TopItem          `json:"category_sales,omitempty"`
	TopItemsByMargin    []TopItem          `json:"top_items_by_margin,omitempty"`
	RegionComparison    []RegionComparison `json:"region_comparison,omitempty"`
	RegionSalesShare    []ShareItem        `json:"region_sales_share,omitempty"`
	CategoryMarginShare []ShareItem        `json:"category_margin_share,omitempty"`
	Warnings            []string           `json:"warnings,omitempty"`
}

type KPI struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Display string  `json:"display,omitempty"`
}

type TopItem struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type MonthlyItem struct {
	Month  string  `json:"month"`
	Volume float64 `json:"sales"`
}

type RegionComparison struct {
	Region     string  `json:"region"`
	SalesTotal float64 `json:"sales_total"`
	Margin     float64 `json:"margin"`
}

// ShareItem is one pie segment.
type ShareItem struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// Control describes one sidebar multi-select.
type Control struct {
	Dimension string   `json:"dimension"`
	Label     string   `json:"label"`
	Options   []string `json:"options"`
	Selected  []string `json:"selected"`
	Clickable bool     `json:"clickable"`
	Disabled  bool     `json:"disabled"`
	Override  string   `json:"override,omitempty"`
}

type SessionState struct {
	ID        string            `json:"id"`
	Overrides map[string]string `json:"overrides"`
}

type DashboardView struct {
	Session   SessionState        `json:"session"`
	Controls  []Control           `json:"controls"`
	Effective map[string][]string `json:"effective"`
	Data      *DashboardData      `json:"data"`
}

type ClickRequest struct {
	Chart      string `json:"chart"`
	Label      string `json:"label,omitempty"`
	PointIndex *int   `json:"point_index,omitempty"`
}

type ClickResponse struct {
	Changed    bool           `json:"changed"`
	Transition string         `json:"transition"`
	Session    SessionState   `json:"session"`
	Dashboard  *DashboardView `json:"dashboard,omitempty"`
}

type DimensionInfo struct {
	Key       string   `json:"key"`
	Column    string   `json:"column"`
	Values    []string `json:"values"`
	Clickable bool     `json:"clickable"`
}

// Table is a page of the filtered table preview.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}
