package trade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// terminalStatuses are deleted once they are older than the retention period.
var terminalStatuses = []models.ProposalStatus{
	models.ProposalStatusExpired,
	models.ProposalStatusRejected,
	models.ProposalStatusCanceled,
	models.ProposalStatusExecuted,
}

// SweepExpirations expires pending proposals past their deadline and deletes
// proposals older than the retention period. Accepted proposals are never
// touched. A failure on one proposal is logged and left for the next sweep.
func (a *App) SweepExpirations(ctx context.Context) (*SweepResult, error) {
	now := a.clock.Now()
	result := &SweepResult{}

	stale, err := a.repo.ListPendingExpiredBefore(ctx, now, a.policy.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired proposals: %w", err)
	}
	for _, p := range stale {
		res, err := a.mutate(ctx, p.ID, operation{action: ActionExpire})
		if err != nil {
			result.Failed++
			log.Error().
				Err(err).
				Str("proposal_id", p.ID.String()).
				Str("slug", p.Slug).
				Msg("failed to expire proposal, leaving it for the next sweep")
			continue
		}
		if lo.Contains(res.events, EventExpired) {
			result.Expired++
		}
	}

	cutoff := now.Add(-a.policy.Retention)
	deletes := []struct {
		what string
		run  func() (int64, error)
	}{
		{"hypothetical", func() (int64, error) {
			return a.repo.DeleteProposalsCreatedBefore(ctx, []models.ProposalStatus{models.ProposalStatusHypothetical}, cutoff)
		}},
		{"stale pending", func() (int64, error) {
			return a.repo.DeletePendingExpiredBefore(ctx, cutoff)
		}},
		{"terminal", func() (int64, error) {
			return a.repo.DeleteProposalsCreatedBefore(ctx, terminalStatuses, cutoff)
		}},
	}
	for _, d := range deletes {
		n, err := d.run()
		if err != nil {
			result.Failed++
			log.Error().Err(err).Str("scope", d.what).Msg("failed to delete old proposals")
			continue
		}
		result.Deleted += int(n)
	}

	log.Info().
		Int("expired", result.Expired).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Time("retention_cutoff", cutoff).
		Msg("expiration sweep finished")
	return result, nil
}

// Lease keeps concurrent service instances from sweeping at the same time.
type Lease interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Sweeper runs one sweep.
type Sweeper interface {
	SweepExpirations(ctx context.Context) (*SweepResult, error)
}

type ReaperConfig struct {
	Interval time.Duration
}

func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{Interval: time.Hour}
}

// Reaper calls SweepExpirations on a fixed interval, starting immediately.
type Reaper struct {
	sweeper Sweeper
	lease   Lease
	clock   clockwork.Clock
	cfg     ReaperConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	sweeps   chan *SweepResult
}

// NewReaper creates a Reaper. lease may be nil when only one instance runs.
func NewReaper(sweeper Sweeper, lease Lease, clock clockwork.Clock, cfg ReaperConfig) *Reaper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReaperConfig().Interval
	}
	return &Reaper{
		sweeper: sweeper,
		lease:   lease,
		clock:   clock,
		cfg:     cfg,
		sweeps:  make(chan *SweepResult, 1),
	}
}

// Sweeps delivers the result of completed sweeps. A result is dropped when
// the previous one has not been received yet.
func (r *Reaper) Sweeps() <-chan *SweepResult {
	return r.sweeps
}

func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper already running")
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	log.Info().Dur("interval", r.cfg.Interval).Msg("reaper started")
	return nil
}

func (r *Reaper) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper not running")
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()

	log.Info().Msg("reaper stopped")
	return nil
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.Chan():
			r.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs a sweep unless another instance holds the lease.
func (r *Reaper) sweepOnce(ctx context.Context) {
	if r.lease != nil {
		ok, err := r.lease.TryAcquire(ctx)
		switch {
		case err != nil:
			// the sweep is idempotent
			log.Warn().Err(err).Msg("reaper lease unavailable, sweeping without it")
		case !ok:
			log.Debug().Msg("reaper lease held by another instance, skipping sweep")
			return
		default:
			defer func() {
				if err := r.lease.Release(ctx); err != nil {
					log.Warn().Err(err).Msg("failed to release reaper lease")
				}
			}()
		}
	}

	result, err := r.sweeper.SweepExpirations(ctx)
	if err != nil {
		log.Error().Err(err).Msg("expiration sweep failed")
		return
	}

	select {
	case r.sweeps <- result:
	default:
	}
}
