// Package transaction is the canonical Transaction repository, including
// upsertTransactionByExternalId (§4.1, §4.4.2).
package transaction

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=transaction.mock.go --package=transaction . Repository
type Repository interface {
	// UpsertByExternalID inserts or updates in a single atomic operation
	// keyed on (tenant, connection, external_id) (§4.1, §8 properties 5/6).
	UpsertByExternalID(ctx context.Context, tenantID, connectionID uuid.UUID, externalID string, fields model.UpsertTransactionFields) error
	CountForAccount(ctx context.Context, tenantID, accountID uuid.UUID) (int, error)
	ListForAccount(ctx context.Context, tenantID, accountID uuid.UUID, includeRemoved bool) ([]*model.Transaction, error)
	// ReparentConnection moves every transaction of the given (matched)
	// accounts onto newConnectionID (§4.5 reconnection re-parenting).
	ReparentConnection(ctx context.Context, accountIDs []uuid.UUID, newConnectionID uuid.UUID) error
	MaxDateForAccounts(ctx context.Context, accountIDs []uuid.UUID) (*time.Time, error)
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) UpsertByExternalID(ctx context.Context, tenantID, connectionID uuid.UUID, externalID string, f model.UpsertTransactionFields) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(f.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	query, args, err := sq.Insert("transaction").
		Columns("transaction_id", "tenant_id", "account_id", "date", "value_date", "amount", "currency",
			"type", "description", "category", "merchant_name", "counterparty_name", "counterparty_iban",
			"reference", "booking_status", "transaction_type_code", "connection_id", "external_transaction_id",
			"import_job_id", "metadata", "removed", "created_at", "updated_at").
		Values(uuid.New(), tenantID, f.AccountID, f.Date, f.ValueDate, f.Amount, f.Currency,
			string(f.Type), f.Description, f.Category, f.MerchantName, f.CounterpartyName, f.CounterpartyIBAN,
			f.Reference, string(f.BookingStatus), f.TransactionTypeCode, connectionID, externalID,
			f.ImportJobID, metadata, f.Removed, now, now).
		Suffix(`ON CONFLICT (tenant_id, connection_id, external_transaction_id) WHERE external_transaction_id IS NOT NULL
			DO UPDATE SET
				account_id = EXCLUDED.account_id, date = EXCLUDED.date, value_date = EXCLUDED.value_date,
				amount = EXCLUDED.amount, currency = EXCLUDED.currency, type = EXCLUDED.type,
				description = EXCLUDED.description, category = EXCLUDED.category,
				merchant_name = EXCLUDED.merchant_name, counterparty_name = EXCLUDED.counterparty_name,
				counterparty_iban = EXCLUDED.counterparty_iban, reference = EXCLUDED.reference,
				booking_status = EXCLUDED.booking_status, transaction_type_code = EXCLUDED.transaction_type_code,
				import_job_id = EXCLUDED.import_job_id, metadata = EXCLUDED.metadata,
				removed = EXCLUDED.removed, updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) CountForAccount(ctx context.Context, tenantID, accountID uuid.UUID) (int, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Select("count(*)").From("transaction").
		Where(sq.Eq{"tenant_id": tenantID, "account_id": accountID, "removed": false}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = db.QueryRowContext(ctx, query, args...).Scan(&count)

	return count, err
}

func (r *PostgreSQLRepository) ListForAccount(ctx context.Context, tenantID, accountID uuid.UUID, includeRemoved bool) ([]*model.Transaction, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	b := sq.Select("transaction_id", "tenant_id", "account_id", "date", "value_date", "amount", "currency",
		"type", "description", "category", "merchant_name", "counterparty_name", "counterparty_iban",
		"reference", "booking_status", "transaction_type_code", "connection_id", "external_transaction_id",
		"import_job_id", "metadata", "removed", "created_at", "updated_at").
		From("transaction").Where(sq.Eq{"tenant_id": tenantID, "account_id": accountID})

	if !includeRemoved {
		b = b.Where(sq.Eq{"removed": false})
	}

	query, args, err := b.OrderBy("date DESC").PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Transaction

	for rows.Next() {
		t := &model.Transaction{}

		var metadataRaw []byte
		if err := rows.Scan(&t.TransactionID, &t.TenantID, &t.AccountID, &t.Date, &t.ValueDate,
			&t.Amount, &t.Currency, &t.Type, &t.Description, &t.Category, &t.MerchantName,
			&t.CounterpartyName, &t.CounterpartyIBAN, &t.Reference, &t.BookingStatus,
			&t.TransactionTypeCode, &t.ConnectionID, &t.ExternalTransactionID, &t.ImportJobID,
			&metadataRaw, &t.Removed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}

		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &t.Metadata); err != nil {
				return nil, err
			}
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

func (r *PostgreSQLRepository) ReparentConnection(ctx context.Context, accountIDs []uuid.UUID, newConnectionID uuid.UUID) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	ids := make([]any, len(accountIDs))
	for i, id := range accountIDs {
		ids[i] = id
	}

	query, args, err := sq.Update("transaction").
		Set("connection_id", newConnectionID).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"account_id": ids}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

// MaxDateForAccounts computes resume_from for a HIGH-confidence reconnection
// (§4.5): the newest transaction date across every matched account.
func (r *PostgreSQLRepository) MaxDateForAccounts(ctx context.Context, accountIDs []uuid.UUID) (*time.Time, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]any, len(accountIDs))
	for i, id := range accountIDs {
		ids[i] = id
	}

	query, args, err := sq.Select("max(date)").From("transaction").
		Where(sq.Eq{"account_id": ids}).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	var max *time.Time
	if err := db.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return nil, err
	}

	return max, nil
}
