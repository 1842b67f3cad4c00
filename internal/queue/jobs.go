package queue

import (
	"context"
	"sync"
	"time"

	"stallbook/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// HoldSweeper reclaims lapsed stall holds.
type HoldSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// HoldSweeperFunc adapts a plain function to HoldSweeper.
type HoldSweeperFunc func(ctx context.Context) (int, error)

func (f HoldSweeperFunc) SweepExpired(ctx context.Context) (int, error) {
	return f(ctx)
}

// JobProcessor handles background sweeps for queues and holds
type JobProcessor struct {
	coordinator Coordinator
	holds       HoldSweeper
	clock       clockwork.Clock
	config      *JobConfig
	log         *logger.Logger
	done        chan struct{}
	stopOnce    sync.Once

	mu       sync.Mutex
	running  bool
	lastRun  time.Time
	lastScan SweepReport
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	SweepInterval time.Duration
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		SweepInterval: 15 * time.Second,
	}
}

// SweepReport summarizes one pass over every active queue and hold.
type SweepReport struct {
	QueuesTouched int `json:"queuesTouched"`
	OffersExpired int `json:"offersExpired"`
	Promoted      int `json:"promoted"`
	ClaimsLapsed  int `json:"claimsLapsed"`
	HoldsExpired  int `json:"holdsExpired"`
}

// NewJobProcessor creates a new job processor. holds may be nil.
func NewJobProcessor(coordinator Coordinator, holds HoldSweeper, clock clockwork.Clock, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultJobConfig().SweepInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &JobProcessor{
		coordinator: coordinator,
		holds:       holds,
		clock:       clock,
		config:      config,
		log:         logger.GetDefault(),
		done:        make(chan struct{}),
	}
}

// Start starts all background jobs
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.mu.Lock()
	jp.running = true
	jp.mu.Unlock()

	go jp.startSweeper(ctx)

	jp.log.WithFields(map[string]interface{}{
		"sweep_interval": jp.config.SweepInterval.String(),
	}).InfoContext(ctx, "Queue background jobs started")
}

// Stop stops all background jobs
func (jp *JobProcessor) Stop() {
	jp.stopOnce.Do(func() {
		close(jp.done)
		jp.mu.Lock()
		jp.running = false
		jp.mu.Unlock()
		jp.log.Info("Queue background jobs stopped")
	})
}

func (jp *JobProcessor) startSweeper(ctx context.Context) {
	ticker := jp.clock.NewTicker(jp.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			jp.RunOnce(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single sweep of queues and holds.
func (jp *JobProcessor) RunOnce(ctx context.Context) SweepReport {
	var report SweepReport

	results, err := jp.coordinator.SweepExpiredOffers(ctx)
	if err != nil {
		jp.log.ErrorWithContext(ctx, "Error sweeping queue offers", err, nil)
	}
	for _, r := range results {
		report.QueuesTouched++
		report.OffersExpired += len(r.Expired)
		if r.Promoted != nil {
			report.Promoted++
		}
		if r.ClaimLapsed != nil {
			report.ClaimsLapsed++
		}
	}

	if jp.holds != nil {
		n, err := jp.holds.SweepExpired(ctx)
		if err != nil {
			jp.log.ErrorWithContext(ctx, "Error sweeping stall holds", err, nil)
		}
		report.HoldsExpired = n
	}

	if report != (SweepReport{}) {
		jp.log.InfoWithContext(ctx, "Sweep completed", map[string]interface{}{
			"queues":         report.QueuesTouched,
			"offers_expired": report.OffersExpired,
			"promoted":       report.Promoted,
			"claims_lapsed":  report.ClaimsLapsed,
			"holds_expired":  report.HoldsExpired,
		})
	}

	jp.mu.Lock()
	jp.lastRun = jp.clock.Now()
	jp.lastScan = report
	jp.mu.Unlock()
	return report
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	jp.mu.Lock()
	defer jp.mu.Unlock()

	status := "stopped"
	if jp.running {
		status = "running"
	}
	out := map[string]interface{}{
		"sweep_interval": jp.config.SweepInterval.String(),
		"status":         status,
		"last_sweep":     jp.lastScan,
	}
	if !jp.lastRun.IsZero() {
		out["last_run"] = jp.lastRun
	}
	return out
}
