package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/engine"
)

func newTestStore(t *testing.T, clock clockwork.Clock) *Store {
	t.Helper()
	s, err := NewStore(StoreConfig{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:     clock,
		TTL:       10 * time.Minute,
		Clickable: ClickableDimensions(),
	})
	require.NoError(t, err)
	return s
}

func TestStoreConfig_Validate(t *testing.T) {
	cfg := StoreConfig{}
	assert.Error(t, cfg.Validate())

	cfg = StoreConfig{Logger: slog.Default(), Clickable: []engine.Dimension{engine.Region}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, defaultTTL, cfg.TTL)
	assert.NotNil(t, cfg.Clock)
}

func TestStore_DoPersistsState(t *testing.T) {
	s := newTestStore(t, clockwork.NewFakeClock())
	id := s.NewID()
	require.True(t, ValidID(id))

	err := s.Do(id, func(cur State) (State, error) {
		next, tr := cur.Apply(ClickSegment(engine.Region, "North"))
		assert.True(t, tr.Dirty())
		return next, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"region": "North"}, s.Snapshot(id).Overrides())

	// Sessions are independent.
	assert.Empty(t, s.Snapshot(s.NewID()).Overrides())
	assert.Equal(t, 2, s.Len())
}

func TestStore_DoErrorKeepsState(t *testing.T) {
	s := newTestStore(t, clockwork.NewFakeClock())
	id := s.NewID()

	boom := errors.New("boom")
	err := s.Do(id, func(cur State) (State, error) {
		next, _ := cur.Apply(ClickSegment(engine.Region, "North"))
		return next, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Snapshot(id).Overrides())
}

func TestStore_EventsAreSerialized(t *testing.T) {
	s := newTestStore(t, clockwork.NewFakeClock())
	id := s.NewID()

	// 100 toggles of the same value must land on Unset: any lost update
	// would leave an odd number applied.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(id, func(cur State) (State, error) {
				next, _ := cur.Apply(ClickSegment(engine.Region, "North"))
				return next, nil
			})
		}()
	}
	wg.Wait()
	assert.Empty(t, s.Snapshot(id).Overrides())
}

func TestStore_SweepExpiresIdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestStore(t, clock)

	idle, active := s.NewID(), s.NewID()
	s.Snapshot(idle)
	s.Snapshot(active)

	clock.Advance(6 * time.Minute)
	s.Snapshot(active)
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	// An expired session comes back empty.
	assert.Empty(t, s.Snapshot(idle).Overrides())
}

func TestStore_LookupMarksSessionSeen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestStore(t, clock)
	id := s.NewID()
	require.NoError(t, s.Do(id, func(cur State) (State, error) {
		next, _ := cur.Apply(ClickSegment(engine.Region, "North"))
		return next, nil
	}))

	// A sweep landing between the lookup and the session lock must not drop
	// the session an event is about to use.
	clock.Advance(11 * time.Minute)
	e := s.entry(id)
	assert.Equal(t, 0, s.Sweep())

	e.mu.Lock()
	assert.Equal(t, map[string]string{"region": "North"}, e.state.Overrides())
	e.mu.Unlock()
	assert.Equal(t, map[string]string{"region": "North"}, s.Snapshot(id).Overrides())
}

func TestStore_RunSweepsPeriodically(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newTestStore(t, clock)
	s.Snapshot(s.NewID())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(11 * time.Minute)
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
