package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/engine"
	"salesdash/internal/models"
)

func resolveStore() *engine.ColumnStore {
	return engine.FromRecords([]models.Record{
		{Region: "South", Category: "Toys", SalesTotal: 200, Margin: 20},
		{Region: "North", Category: "Games", SalesTotal: 100, Margin: 10},
		{Region: "East", Category: "Toys", SalesTotal: 50, Margin: 5},
	})
}

func TestResolve_ByLabel(t *testing.T) {
	cs := resolveStore()

	ev, ok := Resolve(cs, Click{Chart: "category-margin", Label: "Games"})
	require.True(t, ok)
	assert.Equal(t, ClickSegment(engine.Category, "Games"), ev)
}

func TestResolve_ByPointIndexUsesUnfilteredOrder(t *testing.T) {
	cs := resolveStore()

	// Segments are ordered by name: East, North, South.
	idx := 1
	ev, ok := Resolve(cs, Click{Chart: "region-sales", PointIndex: &idx})
	require.True(t, ok)
	assert.Equal(t, "North", ev.Value)
	assert.Equal(t, engine.Region, ev.Dimension)
}

func TestResolve_BlankValueIsNotASegment(t *testing.T) {
	cs := engine.FromRecords([]models.Record{
		{Region: "North", Category: "Toys", SalesTotal: 100, Margin: 10},
		{Region: "", Category: "Toys", SalesTotal: 50, Margin: 5},
	})

	idx := 0
	ev, ok := Resolve(cs, Click{Chart: "region-sales", PointIndex: &idx})
	require.True(t, ok)
	assert.Equal(t, "North", ev.Value)

	idx = 1
	_, ok = Resolve(cs, Click{Chart: "region-sales", PointIndex: &idx})
	assert.False(t, ok)
}

func TestResolve_Unresolvable(t *testing.T) {
	cs := resolveStore()
	neg, past := -1, 3

	cases := map[string]Click{
		"unknown chart":      {Chart: "monthly-sales", Label: "North"},
		"unknown label":      {Chart: "region-sales", Label: "West"},
		"negative index":     {Chart: "region-sales", PointIndex: &neg},
		"index out of range": {Chart: "region-sales", PointIndex: &past},
		"nothing":            {Chart: "region-sales"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Resolve(cs, c)
			assert.False(t, ok)
		})
	}
}

func TestResolve_LabelTakesPrecedenceOverIndex(t *testing.T) {
	cs := resolveStore()
	idx := 0
	ev, ok := Resolve(cs, Click{Chart: "region-sales", Label: "South", PointIndex: &idx})
	require.True(t, ok)
	assert.Equal(t, "South", ev.Value)
}

func TestChartByName(t *testing.T) {
	c, ok := ChartByName("region-sales")
	require.True(t, ok)
	assert.Equal(t, engine.Region, c.Dimension)

	_, ok = ChartByName("nope")
	assert.False(t, ok)

	assert.Equal(t, []engine.Dimension{engine.Region, engine.Category}, ClickableDimensions())
}
