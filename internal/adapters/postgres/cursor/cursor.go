// Package cursor is the ProviderSyncCursor repository (§4.4.2, §8 properties
// 3/4): updated only after a full page batch has been staged.
package cursor

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=cursor.mock.go --package=cursor . Repository
type Repository interface {
	Load(ctx context.Context, connectionID uuid.UUID) (*model.ProviderSyncCursor, error)
	Persist(ctx context.Context, c *model.ProviderSyncCursor) error
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

// Load returns nil cursor (never synced) rather than an error when no row
// exists yet — the caller's loop treats that as the starting state.
func (r *PostgreSQLRepository) Load(ctx context.Context, connectionID uuid.UUID) (*model.ProviderSyncCursor, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("connection_id", "cursor", "last_sync_at", "last_page_count",
		"metric_added", "metric_modified", "metric_removed", "metric_has_more", "updated_at").
		From("provider_sync_cursor").Where(sq.Eq{"connection_id": connectionID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	c := &model.ProviderSyncCursor{}

	row := db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&c.ConnectionID, &c.Cursor, &c.LastSyncAt, &c.LastPageCount,
		&c.Metrics.Added, &c.Metrics.Modified, &c.Metrics.Removed, &c.Metrics.HasMore, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.ProviderSyncCursor{ConnectionID: connectionID, Cursor: nil}, nil
		}

		return nil, err
	}

	return c, nil
}

func (r *PostgreSQLRepository) Persist(ctx context.Context, c *model.ProviderSyncCursor) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	c.UpdatedAt = now

	query, args, err := sq.Insert("provider_sync_cursor").
		Columns("connection_id", "cursor", "last_sync_at", "last_page_count",
			"metric_added", "metric_modified", "metric_removed", "metric_has_more", "updated_at").
		Values(c.ConnectionID, c.Cursor, c.LastSyncAt, c.LastPageCount,
			c.Metrics.Added, c.Metrics.Modified, c.Metrics.Removed, c.Metrics.HasMore, now).
		Suffix(`ON CONFLICT (connection_id) DO UPDATE SET
			cursor = EXCLUDED.cursor, last_sync_at = EXCLUDED.last_sync_at, last_page_count = EXCLUDED.last_page_count,
			metric_added = EXCLUDED.metric_added, metric_modified = EXCLUDED.metric_modified,
			metric_removed = EXCLUDED.metric_removed, metric_has_more = EXCLUDED.metric_has_more,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}
