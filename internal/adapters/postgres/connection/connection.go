// Package connection is the Connection repository backing the scheduler's
// ready-set query and the sync engine's lease/state transitions.
package connection

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=connection.mock.go --package=connection . Repository
type Repository interface {
	Create(ctx context.Context, input model.CreateConnectionInput) (*model.Connection, error)
	Find(ctx context.Context, tenantID, id uuid.UUID) (*model.Connection, error)
	FindAny(ctx context.Context, id uuid.UUID) (*model.Connection, error) // admin bypass (§4.1)
	ListReady(ctx context.Context, bucket model.SyncSchedule, now time.Time, limit int) ([]*model.Connection, error)
	ListFleetWide(ctx context.Context, filters FleetFilters) ([]*model.Connection, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ConnectionStatus, lastError *string) error
	UpdateSchedule(ctx context.Context, id uuid.UUID, bucket model.SyncSchedule, enabled bool) error
	RecordSyncOutcome(ctx context.Context, id uuid.UUID, outcome model.SyncOutcome) error
	SetOAuthState(ctx context.Context, id uuid.UUID, state string) error
	ConsumeOAuthState(ctx context.Context, state string) (*model.Connection, error)
	LinkReconnection(ctx context.Context, id, reconnectedFrom uuid.UUID, confidence model.ReconnectionConfidence) error
	// SetInstitutionID records the institution identity fetchRawAccounts
	// surfaced for this connection, so a later authorization's reconnection
	// check (§4.5) can compare institution ids rather than just provider ids.
	SetInstitutionID(ctx context.Context, id uuid.UUID, institutionID string) error
	// UpdateHealth persists the scorer's per-connection verdict (§4.7).
	UpdateHealth(ctx context.Context, id uuid.UUID, score int, status model.HealthStatus) error
}

// FleetFilters narrows listConnectionsFleetWide (§6 admin operations).
type FleetFilters struct {
	TenantID *uuid.UUID
	Status   *model.ConnectionStatus
	Limit    int
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

var columns = []string{
	"id", "tenant_id", "provider_id", "display_name", "institution_id", "status", "integration_type",
	"sync_schedule", "sync_enabled", "last_sync_at", "next_sync_at", "last_success_at",
	"last_error", "last_error_at", "consecutive_failures", "health_score", "health_status", "oauth_state",
	"is_reconnection", "reconnected_from", "reconnection_confidence", "created_by",
	"created_at", "updated_at",
}

func scan(row interface{ Scan(...any) error }, c *model.Connection) error {
	return row.Scan(
		&c.ID, &c.TenantID, &c.ProviderID, &c.DisplayName, &c.InstitutionID, &c.Status, &c.IntegrationType,
		&c.SyncSchedule, &c.SyncEnabled, &c.LastSyncAt, &c.NextSyncAt, &c.LastSuccessAt,
		&c.LastError, &c.LastErrorAt, &c.ConsecutiveFailures, &c.HealthScore, &c.HealthStatus, &c.OAuthState,
		&c.IsReconnection, &c.ReconnectedFrom, &c.ReconnectionConfidence, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
}

func (r *PostgreSQLRepository) Create(ctx context.Context, input model.CreateConnectionInput) (*model.Connection, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &model.Connection{
		ID:              uuid.New(),
		TenantID:        input.TenantID,
		ProviderID:      input.ProviderID,
		DisplayName:     input.DisplayName,
		Status:          model.ConnectionStatusPending,
		IntegrationType: input.IntegrationType,
		SyncSchedule:    input.SyncSchedule,
		SyncEnabled:     true,
		HealthScore:     100,
		HealthStatus:    model.HealthHealthy,
		CreatedBy:       input.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	query, args, err := sq.Insert("connection").Columns(columns...).
		Values(c.ID, c.TenantID, c.ProviderID, c.DisplayName, c.InstitutionID, string(c.Status), string(c.IntegrationType),
			string(c.SyncSchedule), c.SyncEnabled, c.LastSyncAt, c.NextSyncAt, c.LastSuccessAt,
			c.LastError, c.LastErrorAt, c.ConsecutiveFailures, c.HealthScore, string(c.HealthStatus), c.OAuthState,
			c.IsReconnection, c.ReconnectedFrom, string(c.ReconnectionConfidence), c.CreatedBy,
			c.CreatedAt, c.UpdatedAt).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	return c, nil
}

func (r *PostgreSQLRepository) Find(ctx context.Context, tenantID, id uuid.UUID) (*model.Connection, error) {
	return r.findBy(ctx, sq.Eq{"tenant_id": tenantID, "id": id})
}

func (r *PostgreSQLRepository) FindAny(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	return r.findBy(ctx, sq.Eq{"id": id})
}

func (r *PostgreSQLRepository) findBy(ctx context.Context, pred sq.Eq) (*model.Connection, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select(columns...).From("connection").Where(pred).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	c := &model.Connection{}

	if err := scan(db.QueryRowContext(ctx, query, args...), c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.EntityNotFoundError{EntityType: "connection"}
		}

		return nil, err
	}

	return c, nil
}

// ListReady selects the scheduler's candidate set for one tick (§4.6):
// sync_enabled, matching bucket, due, ordered oldest-due first then lowest
// health_score to prioritize recovery. Exclusivity against a connection
// already running is NOT enforced here: that invariant (§5, §8 property 10)
// is owned by the Redis lease (redis.LeaseRepository), which the scheduler
// attempts per candidate and skips on apperr.LeaseContention. A row here
// that's already leased simply fails its lease acquire and is requeued for
// the next tick.
func (r *PostgreSQLRepository) ListReady(ctx context.Context, bucket model.SyncSchedule, now time.Time, limit int) ([]*model.Connection, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select(columns...).From("connection").
		Where(sq.Eq{"sync_enabled": true, "sync_schedule": string(bucket)}).
		Where(sq.LtOrEq{"next_sync_at": now}).
		OrderBy("next_sync_at ASC", "health_score ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Connection

	for rows.Next() {
		c := &model.Connection{}
		if err := scan(rows, c); err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

// ListFleetWide is the admin bypass entry point (§4.1): the caller logs an
// AdminAuditEvent, this method simply omits the tenant predicate.
func (r *PostgreSQLRepository) ListFleetWide(ctx context.Context, filters FleetFilters) ([]*model.Connection, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	b := sq.Select(columns...).From("connection")

	if filters.TenantID != nil {
		b = b.Where(sq.Eq{"tenant_id": *filters.TenantID})
	}

	if filters.Status != nil {
		b = b.Where(sq.Eq{"status": string(*filters.Status)})
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 200
	}

	query, args, err := b.OrderBy("created_at DESC").Limit(uint64(limit)).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Connection

	for rows.Next() {
		c := &model.Connection{}
		if err := scan(rows, c); err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, rows.Err()
}

func (r *PostgreSQLRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ConnectionStatus, lastError *string) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	b := sq.Update("connection").
		Set("status", string(status)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})

	if lastError != nil {
		b = b.Set("last_error", *lastError).Set("last_error_at", sq.Expr("now()"))
	}

	query, args, err := b.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, bucket model.SyncSchedule, enabled bool) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("connection").
		Set("sync_schedule", string(bucket)).
		Set("sync_enabled", enabled).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

// RecordSyncOutcome persists the scheduler's post-run bookkeeping (§4.1,
// §4.4.3): on success resets consecutive_failures and back-off; on failure
// increments consecutive_failures and records the error.
func (r *PostgreSQLRepository) RecordSyncOutcome(ctx context.Context, id uuid.UUID, outcome model.SyncOutcome) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	b := sq.Update("connection").
		Set("last_sync_at", outcome.OccurredAt).
		Set("next_sync_at", outcome.NextSyncAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id})

	if outcome.Success {
		b = b.Set("last_success_at", outcome.OccurredAt).
			Set("consecutive_failures", 0).
			Set("status", string(model.ConnectionStatusActive))
	} else {
		b = b.Set("consecutive_failures", sq.Expr("consecutive_failures + 1"))
		if outcome.ErrorMessage != nil {
			b = b.Set("last_error", *outcome.ErrorMessage).Set("last_error_at", outcome.OccurredAt)
		}
	}

	query, args, err := b.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) SetOAuthState(ctx context.Context, id uuid.UUID, state string) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("connection").
		Set("oauth_state", state).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

// ConsumeOAuthState looks up the pending Connection by its one-time state
// token and clears it atomically, so a replayed callback finds nothing.
func (r *PostgreSQLRepository) ConsumeOAuthState(ctx context.Context, state string) (*model.Connection, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	selQuery, selArgs, err := sq.Select(columns...).From("connection").
		Where(sq.Eq{"oauth_state": state}).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	c := &model.Connection{}
	if err := scan(db.QueryRowContext(ctx, selQuery, selArgs...), c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.EntityNotFoundError{EntityType: "connection", Message: "oauth state not recognized or already consumed"}
		}

		return nil, err
	}

	updQuery, updArgs, err := sq.Update("connection").Set("oauth_state", nil).
		Where(sq.Eq{"id": c.ID}).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, updQuery, updArgs...); err != nil {
		return nil, err
	}

	return c, nil
}

func (r *PostgreSQLRepository) SetInstitutionID(ctx context.Context, id uuid.UUID, institutionID string) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("connection").
		Set("institution_id", institutionID).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) UpdateHealth(ctx context.Context, id uuid.UUID, score int, status model.HealthStatus) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("connection").
		Set("health_score", score).
		Set("health_status", string(status)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) LinkReconnection(ctx context.Context, id, reconnectedFrom uuid.UUID, confidence model.ReconnectionConfidence) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("connection").
		Set("is_reconnection", true).
		Set("reconnected_from", reconnectedFrom).
		Set("reconnection_confidence", string(confidence)).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}
