package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is an IngestionJob's lifecycle state. Transitions are allowed
// only pending -> in_progress -> {completed, failed}; never backwards.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IngestionJob records one sync run end to end (§4.4.1, §4.8).
// ingestionjob.Repository.PurgeOlderThan deletes rows older than a cutoff;
// no scheduled job in this module calls it, so rows are not purged
// automatically. SystemHealthMetric retains the aggregate.
type IngestionJob struct {
	ID               uuid.UUID  `json:"id"`
	TenantID         uuid.UUID  `json:"tenant_id"`
	ConnectionID     uuid.UUID  `json:"connection_id"`
	JobType          string     `json:"job_type"`
	Status           JobStatus  `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RecordsFetched   int        `json:"records_fetched"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsImported  int        `json:"records_imported"`
	RecordsSkipped   int        `json:"records_skipped"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	Summary          map[string]any `json:"summary,omitempty"`
}

// CanTransitionTo enforces the forward-only status machine.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobInProgress
	case JobInProgress:
		return next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// HistoryEventType classifies a ConnectionHistoryEvent.
type HistoryEventType string

const (
	HistoryReconnection  HistoryEventType = "reconnection"
	HistoryTokenRefresh  HistoryEventType = "token_refresh"
	HistoryRevocation    HistoryEventType = "revocation"
	HistoryError         HistoryEventType = "error"
)

// ConnectionHistoryEvent is an append-only audit trail entry for a
// connection's lifecycle (§4.5, §4.8).
type ConnectionHistoryEvent struct {
	ID                   uuid.UUID        `json:"id"`
	TenantID             uuid.UUID        `json:"tenant_id"`
	ConnectionID         uuid.UUID        `json:"connection_id"`
	PreviousConnectionID *uuid.UUID       `json:"previous_connection_id,omitempty"`
	EventType            HistoryEventType `json:"event_type"`
	Payload              map[string]any   `json:"payload,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// AdminAuditEvent is the append-only log of every administrative mutation
// (§4.8, §6): schedule changes, manual triggers, bulk updates, fleet-wide
// reads that bypass tenant isolation.
type AdminAuditEvent struct {
	ID           uuid.UUID      `json:"id"`
	ActorUserID  uuid.UUID      `json:"actor_user_id"`
	Action       string         `json:"action"`
	TargetType   string         `json:"target_type"`
	TargetID     *string        `json:"target_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// HealthStatus is the tri-state classification the scorer (§4.7) assigns.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// SystemHealthMetric is a point-in-time fleet-aggregate metric emitted every
// tick (§4.7, §4.8).
type SystemHealthMetric struct {
	ID         uuid.UUID    `json:"id"`
	MetricName string       `json:"metric_name"`
	Value      float64      `json:"value"`
	Unit       string       `json:"unit"`
	Status     HealthStatus `json:"status"`
	RecordedAt time.Time    `json:"recorded_at"`
}
