package session

import (
	"testing"

	"github.com/hashicorp/go-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/engine"
	"salesdash/internal/models"
)

func TestClickFilter_Transitions(t *testing.T) {
	var f ClickFilter
	assert.False(t, f.IsSet())

	f, tr := f.Click("North")
	assert.Equal(t, Set, tr)
	v, ok := f.Value()
	require.True(t, ok)
	assert.Equal(t, "North", v)

	f, tr = f.Click("South")
	assert.Equal(t, Replace, tr)
	v, _ = f.Value()
	assert.Equal(t, "South", v)

	f, tr = f.Click("South")
	assert.Equal(t, Clear, tr)
	assert.False(t, f.IsSet())
}

func TestState_ToggleLaw(t *testing.T) {
	for _, seq := range [][]string{{}, {"A"}, {"A", "B"}, {"B", "B", "A"}} {
		s := NewState(engine.Region)
		for _, v := range seq {
			s, _ = s.Apply(ClickSegment(engine.Region, v))
		}
		s, _ = s.Apply(ClickSegment(engine.Region, "C"))
		s, tr := s.Apply(ClickSegment(engine.Region, "C"))
		assert.Equal(t, Clear, tr, "sequence %v", seq)

		f, _ := s.Filter(engine.Region)
		assert.False(t, f.IsSet(), "sequence %v", seq)
	}
}

func TestState_ReplaceNeverUnion(t *testing.T) {
	s := NewState(engine.Region, engine.Category)
	s, _ = s.Apply(ClickSegment(engine.Region, "North"))
	s, tr := s.Apply(ClickSegment(engine.Region, "South"))
	require.True(t, tr.Dirty())

	eff := s.Effective(engine.Selections{})
	assert.Equal(t, 1, eff[engine.Region].Size())
	assert.True(t, eff[engine.Region].Contains("South"))
}

func TestState_ResetAll(t *testing.T) {
	states := []State{
		NewState(engine.Region, engine.Category),
	}
	s, _ := states[0].Apply(ClickSegment(engine.Region, "North"))
	states = append(states, s)
	s, _ = s.Apply(ClickSegment(engine.Category, "Toys"))
	states = append(states, s)

	for _, st := range states {
		next, tr := st.Apply(ResetAll())
		assert.Equal(t, Reset, tr)
		assert.True(t, tr.Dirty())
		assert.Empty(t, next.Overrides())
		assert.ElementsMatch(t, []engine.Dimension{engine.Region, engine.Category}, next.Clickable())
	}
}

func TestState_DimensionsIndependent(t *testing.T) {
	s := NewState(engine.Region, engine.Category)
	s, _ = s.Apply(ClickSegment(engine.Region, "North"))
	s, _ = s.Apply(ClickSegment(engine.Category, "Toys"))
	s, _ = s.Apply(ClickSegment(engine.Region, "North"))

	assert.Equal(t, map[string]string{"category": "Toys"}, s.Overrides())
}

func TestState_IgnoredEvents(t *testing.T) {
	s := NewState(engine.Region)

	next, tr := s.Apply(ClickSegment(engine.Supplier, "Acme"))
	assert.Equal(t, None, tr)
	assert.False(t, tr.Dirty())
	assert.Empty(t, next.Overrides())

	_, tr = s.Apply(ClickSegment(engine.Region, ""))
	assert.Equal(t, None, tr)
}

func TestState_ApplyDoesNotMutateReceiver(t *testing.T) {
	s := NewState(engine.Region)
	_, _ = s.Apply(ClickSegment(engine.Region, "North"))
	assert.Empty(t, s.Overrides())
}

func TestState_OverrideWinsOverSidebar(t *testing.T) {
	s := NewState(engine.Region)
	s, _ = s.Apply(ClickSegment(engine.Region, "North"))

	sidebar := engine.Selections{
		engine.Region:   set.From([]string{"South", "East"}),
		engine.Supplier: set.From([]string{"Acme"}),
	}
	eff := s.Effective(sidebar)

	assert.Equal(t, 1, eff[engine.Region].Size())
	assert.True(t, eff[engine.Region].Contains("North"))
	assert.Same(t, sidebar[engine.Supplier], eff[engine.Supplier])
	assert.Equal(t, 2, sidebar[engine.Region].Size(), "sidebar must not be modified")
}

func TestScenario_NorthSouth(t *testing.T) {
	cs := engine.FromRecords([]models.Record{
		{Region: "North", SalesTotal: 100},
		{Region: "South", SalesTotal: 200},
	})
	sidebar := engine.FullSelections(cs)
	totalSales := func(s State) float64 {
		data := engine.Aggregate(cs.Filter(s.Effective(sidebar)), engine.Options{})
		require.NotEmpty(t, data.KPIs)
		return data.KPIs[0].Value
	}

	s := NewState(ClickableDimensions()...)

	// Click the "North" slice
	ev, ok := Resolve(cs, Click{Chart: RegionSales.Name, Label: "North"})
	require.True(t, ok)
	s, tr := s.Apply(ev)
	assert.Equal(t, Set, tr)
	assert.Equal(t, map[string]string{"region": "North"}, s.Overrides())
	assert.Equal(t, 1, cs.Filter(s.Effective(sidebar)).Len())
	assert.Equal(t, 100.0, totalSales(s))

	// Click "South" instead: replace, not combine
	south, tr := s.Apply(ClickSegment(engine.Region, "South"))
	assert.Equal(t, Replace, tr)
	assert.Equal(t, map[string]string{"region": "South"}, south.Overrides())
	assert.Equal(t, 200.0, totalSales(south))

	// Click "North" again: back to Unset
	s, tr = s.Apply(ev)
	assert.Equal(t, Clear, tr)
	assert.Empty(t, s.Overrides())
	assert.Equal(t, 2, cs.Filter(s.Effective(sidebar)).Len())
	assert.Equal(t, 300.0, totalSales(s))
}
