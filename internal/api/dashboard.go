package api

import (
	"net/url"
	"slices"
	"time"

	"github.com/hashicorp/go-set/v2"

	"salesdash/internal/engine"
	"salesdash/internal/models"
	"salesdash/internal/session"
)

// sidebarSelections reads the multi-select values from repeated query
// parameters keyed by dimension. A dimension without a parameter selects its
// whole domain.
func sidebarSelections(cs *engine.ColumnStore, q url.Values) engine.Selections {
	sel := engine.FullSelections(cs)
	for _, d := range engine.Dimensions() {
		values, ok := q[d.Key()]
		if !ok {
			continue
		}
		s := set.New[string](len(values))
		for _, v := range values {
			if v != "" {
				s.Insert(v)
			}
		}
		sel[d] = s
	}
	return sel
}

// sidebarQuery keeps only the dimension parameters of q, so it can be
// carried through redirects and chart URLs.
func sidebarQuery(q url.Values) url.Values {
	out := url.Values{}
	for _, d := range engine.Dimensions() {
		if values, ok := q[d.Key()]; ok {
			out[d.Key()] = values
		}
	}
	return out
}

type computed struct {
	view *engine.View
	dash *models.DashboardView
}

// compute filters and aggregates the dashboard of one session.
func (h *Handler) compute(cs *engine.ColumnStore, id string, st session.State, q url.Values, trigger string) computed {
	start := time.Now()

	// 1. Effective selections: click overrides win over the sidebar
	sidebar := sidebarSelections(cs, q)
	effective := st.Effective(sidebar)

	// 2. Filter, then aggregate (skipped by Aggregate on an empty view)
	view := cs.Filter(effective)
	data := engine.Aggregate(view, engine.Options{Workers: h.cfg.Workers})
	for i := range data.KPIs {
		data.KPIs[i].Display = h.cfg.Formatter.Amount(data.KPIs[i].Value)
	}
	h.cfg.Metrics.computed(trigger, start)

	h.log.Debug("dashboard computed",
		"session", id,
		"trigger", trigger,
		"rows", view.Len(),
		"duration", time.Since(start),
	)

	return computed{
		view: view,
		dash: &models.DashboardView{
			Session:   sessionState(id, st),
			Controls:  controls(cs, sidebar, st),
			Effective: effectiveValues(cs, effective),
			Data:      data,
		},
	}
}

func sessionState(id string, st session.State) models.SessionState {
	return models.SessionState{ID: id, Overrides: st.Overrides()}
}

// controls describes the sidebar. A dimension with an active click override
// is disabled and shows the override as its only selection. Blank values are
// not offered since they cannot be selected.
func controls(cs *engine.ColumnStore, sidebar engine.Selections, st session.State) []models.Control {
	clickable := set.From(st.Clickable())
	out := make([]models.Control, 0, engine.NumDimensions)
	for _, d := range engine.Dimensions() {
		domain := slices.DeleteFunc(cs.Domain(d), func(v string) bool { return v == "" })
		ctl := models.Control{
			Dimension: d.Key(),
			Label:     d.Column(),
			Options:   domain,
			Selected:  inDomainOrder(domain, sidebar[d]),
			Clickable: clickable.Contains(d),
		}
		if f, ok := st.Filter(d); ok {
			if v, on := f.Value(); on {
				ctl.Disabled = true
				ctl.Override = v
				ctl.Selected = []string{v}
			}
		}
		out = append(out, ctl)
	}
	return out
}

func effectiveValues(cs *engine.ColumnStore, sel engine.Selections) map[string][]string {
	out := make(map[string][]string, engine.NumDimensions)
	for _, d := range engine.Dimensions() {
		out[d.Key()] = inDomainOrder(cs.Domain(d), sel[d])
	}
	return out
}

// inDomainOrder lists the members of s in domain order. An empty or nil set
// is unconstrained and lists the whole domain.
func inDomainOrder(domain []string, s *set.Set[string]) []string {
	if s == nil || s.Empty() {
		return domain
	}
	out := make([]string, 0, s.Size())
	for _, v := range domain {
		if s.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

// table materializes one page of the filtered rows.
func table(v *engine.View, offset, limit int) *models.Table {
	cs := v.Store()
	t := &models.Table{
		Columns: cs.Columns(),
		Rows:    [][]any{},
		Total:   v.Len(),
		Limit:   limit,
		Offset:  offset,
	}
	for _, r := range v.Page(offset, limit) {
		row := make([]any, 0, len(t.Columns))
		for _, d := range engine.Dimensions() {
			row = append(row, cs.Value(d, r))
		}
		for _, m := range engine.Measures() {
			if cs.Has(m) {
				row = append(row, cs.Amount(m, r))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
