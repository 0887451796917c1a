// Package provideraccount is the raw ProviderAccount repository (§4.4.1
// accounts phase).
package provideraccount

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=provideraccount.mock.go --package=provideraccount . Repository
type Repository interface {
	// Upsert keys on (connection_id, provider_id, external_account_id) per §3.
	Upsert(ctx context.Context, a *model.ProviderAccount) (*model.ProviderAccount, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*model.ProviderAccount, error)
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) Upsert(ctx context.Context, a *model.ProviderAccount) (*model.ProviderAccount, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	now := time.Now().UTC()
	a.LastSyncedAt = now

	metadata, err := json.Marshal(a.ProviderMetadata)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Insert("provider_account").
		Columns("id", "tenant_id", "connection_id", "provider_id", "external_account_id", "type",
			"currency", "balance", "iban", "status", "provider_metadata", "last_synced_at", "account_id", "created_at").
		Values(a.ID, a.TenantID, a.ConnectionID, a.ProviderID, a.ExternalAccountID, a.Type,
			a.Currency, a.Balance, a.IBAN, a.Status, metadata, a.LastSyncedAt, a.AccountID, now).
		Suffix(`ON CONFLICT (connection_id, provider_id, external_account_id) DO UPDATE SET
			type = EXCLUDED.type, currency = EXCLUDED.currency, balance = EXCLUDED.balance,
			iban = EXCLUDED.iban, status = EXCLUDED.status, provider_metadata = EXCLUDED.provider_metadata,
			last_synced_at = EXCLUDED.last_synced_at, account_id = COALESCE(provider_account.account_id, EXCLUDED.account_id)
			RETURNING id, account_id`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&a.ID, &a.AccountID); err != nil {
		return nil, err
	}

	return a, nil
}

func (r *PostgreSQLRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*model.ProviderAccount, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("id", "tenant_id", "connection_id", "provider_id", "external_account_id",
		"type", "currency", "balance", "iban", "status", "provider_metadata", "last_synced_at", "account_id", "created_at").
		From("provider_account").Where(sq.Eq{"connection_id": connectionID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ProviderAccount

	for rows.Next() {
		a := &model.ProviderAccount{}

		var metadataRaw []byte
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ConnectionID, &a.ProviderID, &a.ExternalAccountID,
			&a.Type, &a.Currency, &a.Balance, &a.IBAN, &a.Status, &metadataRaw, &a.LastSyncedAt, &a.AccountID, &a.CreatedAt); err != nil {
			return nil, err
		}

		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &a.ProviderMetadata); err != nil {
				return nil, err
			}
		}

		out = append(out, a)
	}

	return out, rows.Err()
}
