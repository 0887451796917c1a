// Package rawtransaction is the ProviderRawTransaction staging repository
// (§4.4.2): written before any canonical upsert, so a crash between pages
// always leaves a replayable trail.
package rawtransaction

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=rawtransaction.mock.go --package=rawtransaction . Repository
type Repository interface {
	// StagePage upserts one page's added/modified/removed rows, idempotent
	// on (connection, external_id, last_updated_at) (§8 property 5).
	StagePage(ctx context.Context, tenantID, connectionID uuid.UUID, rows []model.ProviderRawTransaction) error
	ListPendingImport(ctx context.Context, connectionID uuid.UUID) ([]*model.ProviderRawTransaction, error)
	MarkImported(ctx context.Context, ids []uuid.UUID) error
	// ResetImportFlag re-stages already-imported rows so a business-rule
	// change can be reapplied without re-calling the provider (§4.4.2).
	ResetImportFlag(ctx context.Context, connectionID uuid.UUID) error
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) StagePage(ctx context.Context, tenantID, connectionID uuid.UUID, rows []model.ProviderRawTransaction) error {
	if len(rows) == 0 {
		return nil
	}

	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	insert := sq.Insert("provider_raw_transaction").
		Columns("id", "tenant_id", "connection_id", "external_transaction_id", "sync_action",
			"raw_data", "last_updated_at", "imported_to_canonical", "created_at")

	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}

		raw, err := msgpack.Marshal(row.RawData)
		if err != nil {
			return err
		}

		insert = insert.Values(row.ID, tenantID, connectionID, row.ExternalTransactionID,
			string(row.SyncAction), raw, row.LastUpdatedAt, false, now)
	}

	query, args, err := insert.Suffix(`ON CONFLICT (connection_id, external_transaction_id, last_updated_at)
		DO NOTHING`).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) ListPendingImport(ctx context.Context, connectionID uuid.UUID) ([]*model.ProviderRawTransaction, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("id", "tenant_id", "connection_id", "external_transaction_id",
		"sync_action", "raw_data", "last_updated_at", "imported_to_canonical", "created_at").
		From("provider_raw_transaction").
		Where(sq.Eq{"connection_id": connectionID, "imported_to_canonical": false}).
		OrderBy("last_updated_at ASC").
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ProviderRawTransaction

	for rows.Next() {
		row := &model.ProviderRawTransaction{}

		var raw []byte
		if err := rows.Scan(&row.ID, &row.TenantID, &row.ConnectionID, &row.ExternalTransactionID,
			&row.SyncAction, &raw, &row.LastUpdatedAt, &row.ImportedToCanonical, &row.CreatedAt); err != nil {
			return nil, err
		}

		if err := msgpack.Unmarshal(raw, &row.RawData); err != nil {
			return nil, err
		}

		out = append(out, row)
	}

	return out, rows.Err()
}

func (r *PostgreSQLRepository) MarkImported(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	anyIDs := make([]any, len(ids))
	for i, id := range ids {
		anyIDs[i] = id
	}

	query, args, err := sq.Update("provider_raw_transaction").
		Set("imported_to_canonical", true).
		Where(sq.Eq{"id": anyIDs}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) ResetImportFlag(ctx context.Context, connectionID uuid.UUID) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("provider_raw_transaction").
		Set("imported_to_canonical", false).
		Where(sq.Eq{"connection_id": connectionID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}
