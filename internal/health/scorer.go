// Package health is the health scorer (C7, §4.7): a 0-100 per-connection
// score blending recent success rate, consecutive failures, and staleness,
// plus a fleet-wide SystemHealthMetric rollup emitted once per scheduler
// tick. A sync event rescores only the connection it names.
package health

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/healthmetric"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/adapters/rabbitmq"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/pkg/model"
)

// jobWindow is the number of most recent jobs success_rate_20 is computed
// over (§4.7).
const jobWindow = 20

// Score computes a connection's health score from its recent job history
// and bookkeeping (§4.7). now is taken as a parameter so callers can test
// staleness deterministically.
func Score(jobs []*model.IngestionJob, consecutiveFailures int, lastSuccessAt *time.Time, now time.Time) (int, model.HealthStatus) {
	successRate := 100.0

	if len(jobs) > 0 {
		successes := 0

		for _, j := range jobs {
			if j.Status == model.JobCompleted {
				successes++
			}
		}

		successRate = 100.0 * float64(successes) / float64(len(jobs))
	}

	failureTerm := 100.0
	if consecutiveFailures > 0 {
		failureTerm = math.Max(0, 100.0-15.0*float64(consecutiveFailures))
	}

	stalenessTerm := 100.0
	if lastSuccessAt != nil {
		age := now.Sub(*lastSuccessAt)
		if age > 24*time.Hour {
			stalenessTerm = math.Max(0, 100.0-(age.Hours()/24.0)*10.0)
		}
	} else if len(jobs) > 0 {
		// jobs ran but none ever succeeded: as stale as it gets.
		stalenessTerm = 0
	}

	raw := 0.4*successRate + 0.4*failureTerm + 0.2*stalenessTerm
	score := int(math.Round(raw))

	if score < 0 {
		score = 0
	}

	if score > 100 {
		score = 100
	}

	return score, statusFor(score)
}

func statusFor(score int) model.HealthStatus {
	switch {
	case score >= 80:
		return model.HealthHealthy
	case score >= 50:
		return model.HealthWarning
	default:
		return model.HealthCritical
	}
}

// Deps bundles the Aggregator's dependencies.
type Deps struct {
	Connections connection.Repository
	Jobs        ingestionjob.Repository
	Metrics     healthmetric.Repository
	Logger      mlog.Logger
}

// Aggregator implements rabbitmq.HealthAggregator: it recomputes and
// persists one connection's score whenever a sync event arrives, and emits
// the fleet-wide SystemHealthMetric once per scheduler tick.
type Aggregator struct {
	deps Deps
}

func NewAggregator(deps Deps) *Aggregator {
	return &Aggregator{deps: deps}
}

var _ rabbitmq.HealthAggregator = (*Aggregator)(nil)

// OnSyncEvent recomputes connectionID's score after its job ledger changed
// (§4.7's "after each IngestionJob closes").
func (a *Aggregator) OnSyncEvent(ctx context.Context, event rabbitmq.SyncEvent) error {
	return a.ScoreConnection(ctx, event.ConnectionID)
}

// ScoreConnection computes and persists one connection's current score. It
// is also called directly by the scheduler right after a run closes, so the
// score reflects the outcome even if the event bus is unavailable.
func (a *Aggregator) ScoreConnection(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := a.deps.Connections.FindAny(ctx, connectionID)
	if err != nil {
		return err
	}

	jobs, err := a.deps.Jobs.LastN(ctx, connectionID, jobWindow)
	if err != nil {
		return err
	}

	score, status := Score(jobs, conn.ConsecutiveFailures, conn.LastSuccessAt, time.Now().UTC())

	return a.deps.Connections.UpdateHealth(ctx, connectionID, score, status)
}

// EmitFleetMetric aggregates every connection's persisted health_score into
// one fleet-wide SystemHealthMetric (§4.7). The scheduler calls this once
// per tick, after dispatch finishes.
func (a *Aggregator) EmitFleetMetric(ctx context.Context) error {
	conns, err := a.deps.Connections.ListFleetWide(ctx, connection.FleetFilters{Limit: 10000})
	if err != nil {
		return err
	}

	if len(conns) == 0 {
		return a.deps.Metrics.Record(ctx, &model.SystemHealthMetric{
			MetricName: "fleet_avg_health_score",
			Value:      100,
			Unit:       "score",
			Status:     model.HealthHealthy,
		})
	}

	total := 0
	critical := 0

	for _, c := range conns {
		total += c.HealthScore
		if c.HealthStatus == model.HealthCritical {
			critical++
		}
	}

	avg := float64(total) / float64(len(conns))

	overall := statusFor(int(math.Round(avg)))
	if critical > 0 {
		a.deps.Logger.Warnf("health: %d/%d connections critical this tick", critical, len(conns))
	}

	return a.deps.Metrics.Record(ctx, &model.SystemHealthMetric{
		MetricName: "fleet_avg_health_score",
		Value:      avg,
		Unit:       "score",
		Status:     overall,
	})
}
