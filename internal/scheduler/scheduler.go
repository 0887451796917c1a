// Package scheduler is the scheduler and dispatcher (C6, §4.6): given one
// schedule bucket, it selects the connections due this tick, runs each
// through the sync engine under a per-connection lease with bounded
// concurrency, and rolls the outcomes into the tick summary the owning HTTP
// endpoint returns.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/engine"
	"github.com/banktrail/ingestor/internal/health"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/platform/mopentelemetry"
	"github.com/banktrail/ingestor/pkg/model"
)

// DefaultTickDeadline bounds one whole tick call (§5: default 5 minutes).
const DefaultTickDeadline = 5 * time.Minute

// DefaultRunDeadline bounds one connection's sync run within a tick (§5:
// default 3 minutes).
const DefaultRunDeadline = 3 * time.Minute

// DefaultBatchLimit caps how many due connections one tick will pick up.
const DefaultBatchLimit = 500

// DefaultMaxConcurrency caps how many connections run their sync
// concurrently within one tick.
const DefaultMaxConcurrency = 16

// LeaseRepository is the exclusivity mechanism a connection's run is held
// under (§5, §8 property 10), matching redis.LeaseRepository's shape
// without importing the redis adapter package directly.
type LeaseRepository interface {
	// Acquire returns apperr.LeaseContention if another worker already
	// holds the connection's lease.
	Acquire(ctx context.Context, connectionID uuid.UUID, ttl time.Duration) error
	Release(ctx context.Context, connectionID uuid.UUID) error
}

// Deps bundles the dispatcher's dependencies.
type Deps struct {
	Connections    connection.Repository
	Leases         LeaseRepository
	Engine         *engine.Engine
	Health         *health.Aggregator
	Logger         mlog.Logger
	TickDeadline   time.Duration
	RunDeadline    time.Duration
	BatchLimit     int
	MaxConcurrency int
}

// Summary is the tick entry point's response body (§6).
type Summary struct {
	Processed     int `json:"processed"`
	Successful    int `json:"successful"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
	Throttled     int `json:"throttled"`
	RecordsSynced int `json:"records_synced"`
}

type Dispatcher struct {
	deps Deps
}

func New(deps Deps) *Dispatcher {
	if deps.TickDeadline <= 0 {
		deps.TickDeadline = DefaultTickDeadline
	}

	if deps.RunDeadline <= 0 {
		deps.RunDeadline = DefaultRunDeadline
	}

	if deps.BatchLimit <= 0 {
		deps.BatchLimit = DefaultBatchLimit
	}

	if deps.MaxConcurrency <= 0 {
		deps.MaxConcurrency = DefaultMaxConcurrency
	}

	return &Dispatcher{deps: deps}
}

// Tick dispatches every due connection in bucket (§4.6). It never returns an
// error for an individual connection's failure — those are reflected in the
// Summary — only for a failure to even select the candidate set.
func (d *Dispatcher) Tick(ctx context.Context, bucket model.SyncSchedule) (Summary, error) {
	tracer := mopentelemetry.Tracer("scheduler")
	ctx, span := tracer.Start(ctx, "scheduler.tick")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, d.deps.TickDeadline)
	defer cancel()

	candidates, err := d.deps.Connections.ListReady(ctx, bucket, time.Now().UTC(), d.deps.BatchLimit)
	if err != nil {
		mopentelemetry.HandleSpanError(span, "failed to select ready connections", err)
		return Summary{}, err
	}

	d.deps.Logger.Infof("scheduler: tick bucket=%s candidates=%d", bucket, len(candidates))

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		summary Summary
	)

	sem := make(chan struct{}, d.deps.MaxConcurrency)

	for _, conn := range candidates {
		wg.Add(1)
		sem <- struct{}{}

		go func(conn *model.Connection) {
			defer wg.Done()
			defer func() { <-sem }()

			d.dispatchOne(ctx, conn, &mu, &summary)
		}(conn)
	}

	wg.Wait()

	if err := d.deps.Health.EmitFleetMetric(ctx); err != nil {
		d.deps.Logger.Warnf("scheduler: failed to emit fleet health metric: %v", err)
	}

	return summary, nil
}

// TriggerNow runs connectionID immediately, outside its regular schedule
// bucket: an admin's on-demand trigger or a connection's first sync right
// after authorization (§4.6's second trigger kind). It acquires the same
// per-connection lease and run deadline a tick dispatch would, so an
// on-demand run can never race a scheduler tick on the same connection (§5,
// §8 property 10) — unlike Tick, it returns apperr.LeaseContention to the
// caller rather than swallowing it, since there is no batch to fall through
// to.
func (d *Dispatcher) TriggerNow(ctx context.Context, connectionID uuid.UUID) (*engine.Result, error) {
	logger := d.deps.Logger.WithFields("connection_id", connectionID.String())

	if err := d.deps.Leases.Acquire(ctx, connectionID, 0); err != nil {
		return nil, err
	}

	defer func() {
		if err := d.deps.Leases.Release(ctx, connectionID); err != nil {
			logger.Warnf("scheduler: lease release failed: %v", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, d.deps.RunDeadline)
	defer cancel()

	return d.deps.Engine.Run(runCtx, connectionID)
}

func (d *Dispatcher) dispatchOne(ctx context.Context, conn *model.Connection, mu *sync.Mutex, summary *Summary) {
	logger := d.deps.Logger.WithFields("connection_id", conn.ID.String())

	if err := d.deps.Leases.Acquire(ctx, conn.ID, 0); err != nil {
		if _, ok := err.(apperr.LeaseContention); ok {
			logger.Debugf("scheduler: connection already leased, skipping this tick")
			return
		}

		logger.Errorf("scheduler: lease acquire failed: %v", err)

		return
	}

	defer func() {
		if err := d.deps.Leases.Release(ctx, conn.ID); err != nil {
			logger.Warnf("scheduler: lease release failed: %v", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, d.deps.RunDeadline)
	defer cancel()

	result, err := d.deps.Engine.Run(runCtx, conn.ID)

	mu.Lock()
	defer mu.Unlock()

	summary.Processed++

	if result != nil && result.Throttled {
		summary.Throttled++
		return
	}

	// A RateLimited run reports Skipped but still carries that error in err
	// (§4.4, §5 policy: skip, not a failure) — check Skipped before err.
	if result != nil && result.Skipped {
		summary.Skipped++
		return
	}

	if err != nil {
		logger.Errorf("scheduler: run failed: %v", err)
		summary.Failed++

		return
	}

	if result.Job.Status == model.JobCompleted {
		summary.Successful++
	} else {
		summary.Failed++
	}

	summary.RecordsSynced += result.Job.RecordsImported

	if err := d.deps.Health.ScoreConnection(ctx, conn.ID); err != nil {
		logger.Warnf("scheduler: health scoring failed: %v", err)
	}
}
