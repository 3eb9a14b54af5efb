package resources

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often the sweeper purges expired entries
// when no interval is configured.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically purges expired resources from the store. The
// publisher already evicts expired entries lazily on read; the sweeper
// reclaims the ones nobody reads again.
//
// It runs as a background goroutine and respects context cancellation for
// graceful shutdown.
type Sweeper struct {
	store    Store
	interval time.Duration
	onPurge  func(int)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper over the store. Intervals below one minute
// are raised to the default. onPurge, if non-nil, is called with the
// purge count after each cycle that removed anything (metrics hook).
func NewSweeper(store Store, interval time.Duration, onPurge func(int)) *Sweeper {
	if interval < time.Minute {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		onPurge:  onPurge,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.Info().Dur("interval", s.interval).Msg("Resource sweeper started")
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop signals the loop to exit and waits for it.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Sweep runs one purge cycle immediately and returns the count removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	return s.sweep(ctx)
}

func (s *Sweeper) sweep(ctx context.Context) int {
	removed, err := s.store.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Warn().Err(err).Msg("Resource sweep failed")
		return removed
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Expired resources purged")
		if s.onPurge != nil {
			s.onPurge(removed)
		}
	}
	return removed
}
