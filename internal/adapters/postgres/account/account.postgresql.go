package account

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mopentelemetry"
	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

const pgUniqueViolation = "23505"

// Repository provides the canonical Account store operations C1 exposes
// (§4.1).
//
//go:generate mockgen --destination=account.mock.go --package=account . Repository
type Repository interface {
	Create(ctx context.Context, a *model.Account) (*model.Account, error)
	Find(ctx context.Context, tenantID, id uuid.UUID) (*model.Account, error)
	FindByAccountID(ctx context.Context, tenantID uuid.UUID, accountID string) (*model.Account, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filters model.AccountFilters) ([]*model.Account, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, input model.UpdateAccountInput) (*model.Account, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ReferenceCount(ctx context.Context, tenantID, id uuid.UUID) (int, error)
	// FindCandidatesForReconnection returns every account of providerID,
	// for the tenant, whose external_account_id or iban exactly matches the
	// new authorization's fingerprint, or whose iban's last 4 characters
	// match one of last4s (the partial-overlap signal a MEDIUM-confidence
	// match is built from), regardless of which connection it is currently
	// tied to (§4.5).
	FindCandidatesForReconnection(ctx context.Context, tenantID uuid.UUID, providerID string, externalAccountIDs, ibans, last4s []string) ([]*model.Account, error)
	// Relink re-points an orphaned account at a newly authorized connection
	// on a HIGH-confidence reconnection match (§4.5).
	Relink(ctx context.Context, tenantID, id, connectionID uuid.UUID, providerID, externalAccountID string) error
}

// PostgreSQLRepository is the Postgres-backed implementation of Repository.
type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
	tableName  string
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc, tableName: "account"}
}

func (r *PostgreSQLRepository) Create(ctx context.Context, a *model.Account) (*model.Account, error) {
	tracer := mopentelemetry.Tracer("postgres.account")
	ctx, span := tracer.Start(ctx, "postgres.create_account")
	defer span.End()

	db, err := r.connection.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(span, "failed to get db", err)
		return nil, err
	}

	record := &PostgreSQLModel{}
	record.FromEntity(a)

	query, args, err := sq.Insert(r.tableName).
		Columns("id", "account_id", "tenant_id", "entity_id", "account_name", "account_type",
			"currency", "balance_current", "balance_available", "balance_ledger", "iban", "bic",
			"bank_name", "account_status", "connection_id", "provider_id", "external_account_id",
			"created_by", "created_at", "updated_at").
		Values(record.ID, record.AccountID, record.TenantID, record.EntityID, record.AccountName,
			record.AccountType, record.Currency, record.BalanceCurrent, record.BalanceAvailable,
			record.BalanceLedger, record.IBAN, record.BIC, record.BankName, record.AccountStatus,
			record.ConnectionID, record.ProviderID, record.ExternalAccountID, record.CreatedBy,
			record.CreatedAt, record.UpdatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		mopentelemetry.HandleSpanError(span, "failed to build insert", err)
		return nil, err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return nil, apperr.EntityConflictError{EntityType: "account", Message: "an account with this account_id already exists for the tenant", Err: err}
		}

		mopentelemetry.HandleSpanError(span, "failed to insert account", err)

		return nil, err
	}

	return record.ToEntity(), nil
}

func (r *PostgreSQLRepository) Find(ctx context.Context, tenantID, id uuid.UUID) (*model.Account, error) {
	tracer := mopentelemetry.Tracer("postgres.account")
	ctx, span := tracer.Start(ctx, "postgres.find_account")
	defer span.End()

	db, err := r.connection.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(span, "failed to get db", err)
		return nil, err
	}

	query, args, err := sq.Select("*").From(r.tableName).
		Where(sq.Eq{"tenant_id": tenantID, "id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	record := &PostgreSQLModel{}

	row := db.QueryRowContext(ctx, query, args...)
	if err := scanAccount(row, record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.EntityNotFoundError{EntityType: "account"}
		}

		mopentelemetry.HandleSpanError(span, "failed to scan account", err)

		return nil, err
	}

	return record.ToEntity(), nil
}

func (r *PostgreSQLRepository) FindByAccountID(ctx context.Context, tenantID uuid.UUID, accountID string) (*model.Account, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("*").From(r.tableName).
		Where(sq.Eq{"tenant_id": tenantID, "account_id": accountID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	record := &PostgreSQLModel{}

	row := db.QueryRowContext(ctx, query, args...)
	if err := scanAccount(row, record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.EntityNotFoundError{EntityType: "account"}
		}

		return nil, err
	}

	return record.ToEntity(), nil
}

func (r *PostgreSQLRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filters model.AccountFilters) ([]*model.Account, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	b := sq.Select("*").From(r.tableName).Where(sq.Eq{"tenant_id": tenantID})

	if filters.ConnectionID != nil {
		b = b.Where(sq.Eq{"connection_id": *filters.ConnectionID})
	}

	if filters.Status != nil {
		b = b.Where(sq.Eq{"account_status": string(*filters.Status)})
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}

	page := filters.Page
	if page <= 0 {
		page = 1
	}

	b = b.OrderBy("created_at DESC").Limit(uint64(limit)).Offset(uint64((page - 1) * limit))

	query, args, err := b.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Account

	for rows.Next() {
		record := &PostgreSQLModel{}
		if err := scanAccount(rows, record); err != nil {
			return nil, err
		}

		out = append(out, record.ToEntity())
	}

	return out, rows.Err()
}

func (r *PostgreSQLRepository) Update(ctx context.Context, tenantID, id uuid.UUID, input model.UpdateAccountInput) (*model.Account, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	b := sq.Update(r.tableName).Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"tenant_id": tenantID, "id": id})

	if input.AccountName != nil {
		b = b.Set("account_name", *input.AccountName)
	}

	if input.EntityID != nil {
		b = b.Set("entity_id", normalizeEmpty(*input.EntityID))
	}

	if input.IBAN != nil {
		b = b.Set("iban", normalizeEmpty(*input.IBAN))
	}

	if input.BIC != nil {
		b = b.Set("bic", normalizeEmpty(*input.BIC))
	}

	if input.BankName != nil {
		b = b.Set("bank_name", normalizeEmpty(*input.BankName))
	}

	if input.Status != nil {
		b = b.Set("account_status", string(*input.Status))
	}

	query, args, err := b.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	return r.Find(ctx, tenantID, id)
}

// Delete refuses while the account is referenced by any Transaction or
// ProviderAccount (§4.1, §8 property 7).
func (r *PostgreSQLRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	count, err := r.ReferenceCount(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if count > 0 {
		return apperr.ReferencedEntityError{EntityType: "account", ReferenceCount: count}
	}

	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Delete(r.tableName).
		Where(sq.Eq{"tenant_id": tenantID, "id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) ReferenceCount(ctx context.Context, tenantID, id uuid.UUID) (int, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Select(
		"(SELECT count(*) FROM transaction WHERE account_id = ? AND tenant_id = ?) + " +
			"(SELECT count(*) FROM provider_account WHERE account_id = ? AND tenant_id = ?)",
	).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, err
	}

	_ = args

	var count int
	if err := db.QueryRowContext(ctx, query, id, tenantID, id, tenantID).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *PostgreSQLRepository) FindCandidatesForReconnection(ctx context.Context, tenantID uuid.UUID, providerID string, externalAccountIDs, ibans, last4s []string) ([]*model.Account, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	if len(externalAccountIDs) == 0 && len(ibans) == 0 && len(last4s) == 0 {
		return nil, nil
	}

	b := sq.Select("*").From(r.tableName).
		Where(sq.Eq{"tenant_id": tenantID, "provider_id": providerID})

	or := sq.Or{}
	if len(externalAccountIDs) > 0 {
		or = append(or, sq.Expr("external_account_id = ANY(?)", pq.Array(externalAccountIDs)))
	}

	if len(ibans) > 0 {
		or = append(or, sq.Expr("iban = ANY(?)", pq.Array(ibans)))
	}

	if len(last4s) > 0 {
		or = append(or, sq.Expr("right(iban, 4) = ANY(?)", pq.Array(last4s)))
	}

	b = b.Where(or)

	query, args, err := b.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Account

	for rows.Next() {
		record := &PostgreSQLModel{}
		if err := scanAccount(rows, record); err != nil {
			return nil, err
		}

		out = append(out, record.ToEntity())
	}

	return out, rows.Err()
}

func (r *PostgreSQLRepository) Relink(ctx context.Context, tenantID, id, connectionID uuid.UUID, providerID, externalAccountID string) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Update(r.tableName).
		Set("connection_id", connectionID).
		Set("provider_id", providerID).
		Set("external_account_id", externalAccountID).
		Set("account_status", string(model.AccountStatusActive)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"tenant_id": tenantID, "id": id}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func normalizeEmpty(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner, m *PostgreSQLModel) error {
	return row.Scan(
		&m.ID, &m.AccountID, &m.TenantID, &m.EntityID, &m.AccountName, &m.AccountType,
		&m.Currency, &m.BalanceCurrent, &m.BalanceAvailable, &m.BalanceLedger, &m.IBAN, &m.BIC,
		&m.BankName, &m.AccountStatus, &m.ConnectionID, &m.ProviderID, &m.ExternalAccountID,
		&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt,
	)
}
