// Package ingestionjob is the IngestionJob repository (§4.4.1, §4.8):
// append-mostly, transitions enforced pending -> in_progress -> {completed,
// failed}.
package ingestionjob

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=ingestionjob.mock.go --package=ingestionjob . Repository
type Repository interface {
	Open(ctx context.Context, tenantID, connectionID uuid.UUID, jobType string) (*model.IngestionJob, error)
	Close(ctx context.Context, job *model.IngestionJob) error
	RecentForConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*model.IngestionJob, error)
	// LastN feeds the health scorer's success_rate_20 (§4.7).
	LastN(ctx context.Context, connectionID uuid.UUID, n int) ([]*model.IngestionJob, error)
	Recent(ctx context.Context, limit int, tenantID *uuid.UUID) ([]*model.IngestionJob, error)
	// PurgeOlderThan implements the 30-day archive policy (§4.8).
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) Open(ctx context.Context, tenantID, connectionID uuid.UUID, jobType string) (*model.IngestionJob, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	job := &model.IngestionJob{
		ID:           uuid.New(),
		TenantID:     tenantID,
		ConnectionID: connectionID,
		JobType:      jobType,
		Status:       model.JobInProgress,
		StartedAt:    time.Now().UTC(),
	}

	query, args, err := sq.Insert("ingestion_job").
		Columns("id", "tenant_id", "connection_id", "job_type", "status", "started_at").
		Values(job.ID, job.TenantID, job.ConnectionID, job.JobType, string(job.Status), job.StartedAt).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	return job, nil
}

func (r *PostgreSQLRepository) Close(ctx context.Context, job *model.IngestionJob) error {
	if !model.JobInProgress.CanTransitionTo(job.Status) {
		return apperr.ValidationError{Message: "ingestion job must close into completed or failed"}
	}

	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	job.CompletedAt = &now

	summary, err := json.Marshal(job.Summary)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("ingestion_job").
		Set("status", string(job.Status)).
		Set("completed_at", job.CompletedAt).
		Set("records_fetched", job.RecordsFetched).
		Set("records_processed", job.RecordsProcessed).
		Set("records_imported", job.RecordsImported).
		Set("records_skipped", job.RecordsSkipped).
		Set("records_failed", job.RecordsFailed).
		Set("error_message", job.ErrorMessage).
		Set("summary", summary).
		Where(sq.Eq{"id": job.ID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func scanJob(row interface{ Scan(...any) error }) (*model.IngestionJob, error) {
	j := &model.IngestionJob{}

	var summaryRaw []byte

	if err := row.Scan(&j.ID, &j.TenantID, &j.ConnectionID, &j.JobType, &j.Status, &j.StartedAt,
		&j.CompletedAt, &j.RecordsFetched, &j.RecordsProcessed, &j.RecordsImported, &j.RecordsSkipped,
		&j.RecordsFailed, &j.ErrorMessage, &summaryRaw); err != nil {
		return nil, err
	}

	if len(summaryRaw) > 0 {
		if err := json.Unmarshal(summaryRaw, &j.Summary); err != nil {
			return nil, err
		}
	}

	return j, nil
}

var jobColumns = []string{
	"id", "tenant_id", "connection_id", "job_type", "status", "started_at", "completed_at",
	"records_fetched", "records_processed", "records_imported", "records_skipped", "records_failed",
	"error_message", "summary",
}

func (r *PostgreSQLRepository) listBy(ctx context.Context, pred sq.Sqlizer, limit int) ([]*model.IngestionJob, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select(jobColumns...).From("ingestion_job").Where(pred).
		OrderBy("started_at DESC").Limit(uint64(limit)).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.IngestionJob

	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, j)
	}

	return out, rows.Err()
}

func (r *PostgreSQLRepository) RecentForConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*model.IngestionJob, error) {
	return r.listBy(ctx, sq.Eq{"connection_id": connectionID}, limit)
}

func (r *PostgreSQLRepository) LastN(ctx context.Context, connectionID uuid.UUID, n int) ([]*model.IngestionJob, error) {
	return r.listBy(ctx, sq.Eq{"connection_id": connectionID, "status": []string{string(model.JobCompleted), string(model.JobFailed)}}, n)
}

func (r *PostgreSQLRepository) Recent(ctx context.Context, limit int, tenantID *uuid.UUID) ([]*model.IngestionJob, error) {
	pred := sq.And{}
	if tenantID != nil {
		pred = append(pred, sq.Eq{"tenant_id": *tenantID})
	}

	return r.listBy(ctx, pred, limit)
}

func (r *PostgreSQLRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Delete("ingestion_job").
		Where(sq.Lt{"started_at": cutoff}).
		Where(sq.NotEq{"status": string(model.JobInProgress)}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, err
	}

	return result.RowsAffected()
}
