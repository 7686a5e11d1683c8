package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/ChlorophyllA/skin2/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule is the cron spec used when none is configured
const DefaultSweepSchedule = "@every 10m"

// Sweeper periodically evicts idle sessions from a Store
type Sweeper struct {
	store   *Store
	maxIdle time.Duration
	cron    *cron.Cron
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper that runs on schedule (standard cron spec or
// "@every <duration>") and evicts sessions idle for longer than maxIdle.
func NewSweeper(store *Store, maxIdle time.Duration, schedule string, logger zerolog.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if maxIdle <= 0 {
		return nil, fmt.Errorf("max idle must be positive, got %s", maxIdle)
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	s := &Sweeper{
		store:   store,
		maxIdle: maxIdle,
		cron:    cron.New(),
		logger:  logger.With().Str("component", "session-sweeper").Logger(),
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start starts the cron scheduler
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info().Dur("max_idle", s.maxIdle).Msg("Session sweeper started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("sweeper is not running")
	}
	<-s.cron.Stop().Done()
	s.running = false

	s.logger.Info().Msg("Session sweeper stopped")
	return nil
}

// Sweep evicts idle sessions once and returns how many were removed
func (s *Sweeper) Sweep() int {
	evicted := s.store.EvictIdle(s.maxIdle, s.store.Now())
	observability.RecordEvictions(evicted)
	if evicted > 0 {
		s.logger.Info().
			Int("evicted", evicted).
			Int("remaining", s.store.Len()).
			Msg("Evicted idle sessions")
	}
	return evicted
}
