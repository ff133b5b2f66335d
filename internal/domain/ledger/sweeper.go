package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper releases reservations whose caller never settled them.
// A crash between reserve and finalize/rollback would otherwise hold
// a credit forever.
type Sweeper struct {
	repo     *Repository
	ttl      time.Duration
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweeper creates a reservation expiry worker
func NewSweeper(repo *Repository, ttl, interval time.Duration) *Sweeper {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	if interval == 0 {
		interval = 1 * time.Minute
	}
	return &Sweeper{
		repo:     repo,
		ttl:      ttl,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background worker
func (s *Sweeper) Start() {
	log.Info().
		Dur("ttl", s.ttl).
		Dur("interval", s.interval).
		Msg("Starting reservation sweeper...")
	go s.loop()
}

// Stop gracefully stops the background worker
func (s *Sweeper) Stop() {
	log.Info().Msg("Stopping reservation sweeper...")
	close(s.stopCh)
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.ttl)

	count, err := s.repo.ExpirePending(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to expire stale reservations")
		return
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("Expired stale reservations")
	}
}
