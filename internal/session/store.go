package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"salesdash/internal/engine"
)

const defaultTTL = 30 * time.Minute

type StoreConfig struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	TTL       time.Duration
	Clickable []engine.Dimension
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Clickable) == 0 {
		return errors.New("at least one clickable dimension is required")
	}
	if cfg.TTL < 0 {
		return errors.New("ttl must not be negative")
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

type entry struct {
	mu       sync.Mutex // serializes events of one session
	state    State
	lastSeen time.Time
}

// Store keeps the click state of every live session in memory.
type Store struct {
	log *slog.Logger
	cfg StoreConfig

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log:      cfg.Logger,
		cfg:      cfg,
		sessions: make(map[string]*entry),
	}, nil
}

// NewID returns a fresh session identifier.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape of an identifier from NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// entry looks up or creates a session and marks it seen. lastSeen is guarded
// by s.mu, so a session handed out here survives the next Sweep.
func (s *Store) entry(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{state: NewState(s.cfg.Clickable...)}
		s.sessions[id] = e
		s.log.Debug("session created", "session", id)
	}
	e.lastSeen = s.cfg.Clock.Now()
	return e
}

// Do runs fn with the session's state while holding the session lock, so an
// event and the recomputation it forces complete before the next event of
// the same session is handled. The state fn returns replaces the stored one
// unless fn fails. Unknown ids start with every override Unset.
func (s *Store) Do(id string, fn func(State) (State, error)) error {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.state)
	if err != nil {
		return err
	}
	e.state = next
	return nil
}

// Snapshot returns the current state of a session.
func (s *Store) Snapshot(id string) State {
	var st State
	_ = s.Do(id, func(cur State) (State, error) {
		st = cur
		return cur, nil
	})
	return st
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	now := s.cfg.Clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue // busy, so not idle
		}
		idle := now.Sub(e.lastSeen) > s.cfg.TTL
		e.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug("expired sessions", "removed", removed, "live", len(s.sessions))
	}
	return removed
}

// Run sweeps expired sessions every half TTL until ctx is done.
func (s *Store) Run(ctx context.Context) {
	ticker := s.cfg.Clock.NewTicker(s.cfg.TTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep()
		}
	}
}
