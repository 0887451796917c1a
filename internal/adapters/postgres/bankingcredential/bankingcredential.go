// Package bankingcredential is the BankingProviderCredential repository for
// direct-bank connections (§4.3).
package bankingcredential

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

//go:generate mockgen --destination=bankingcredential.mock.go --package=bankingcredential . Repository
type Repository interface {
	Upsert(ctx context.Context, c *model.BankingProviderCredential) error
	Find(ctx context.Context, connectionID uuid.UUID) (*model.BankingProviderCredential, error)
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

// fieldRow is one row of the credential's encrypted_fields map, stored in a
// side table keyed by (connection_id, field_key) rather than a JSON blob so
// each field carries its own nonce independently.
type fieldRow struct {
	FieldKey   string
	Ciphertext []byte
	Nonce      []byte
}

func (r *PostgreSQLRepository) Upsert(ctx context.Context, c *model.BankingProviderCredential) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
		c.CreatedAt = now
	}

	c.UpdatedAt = now

	query, args, err := sq.Insert("banking_provider_credential").
		Columns("id", "tenant_id", "connection_id", "provider_id", "environment", "notes", "created_at", "updated_at").
		Values(c.ID, c.TenantID, c.ConnectionID, c.ProviderID, c.Environment, c.Notes, c.CreatedAt, c.UpdatedAt).
		Suffix(`ON CONFLICT (connection_id) DO UPDATE SET
			environment = EXCLUDED.environment, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	delQuery, delArgs, err := sq.Delete("banking_provider_credential_field").
		Where(sq.Eq{"credential_id": c.ID}).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return err
	}

	insert := sq.Insert("banking_provider_credential_field").
		Columns("credential_id", "field_key", "ciphertext", "nonce")

	for key, field := range c.EncryptedFields {
		insert = insert.Values(c.ID, key, field.Ciphertext, field.Nonce)
	}

	if len(c.EncryptedFields) > 0 {
		query, args, err := insert.PlaceholderFormat(sq.Dollar).ToSql()
		if err != nil {
			return err
		}

		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	return nil
}

func (r *PostgreSQLRepository) Find(ctx context.Context, connectionID uuid.UUID) (*model.BankingProviderCredential, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("id", "tenant_id", "connection_id", "provider_id", "environment", "notes", "created_at", "updated_at").
		From("banking_provider_credential").Where(sq.Eq{"connection_id": connectionID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	c := &model.BankingProviderCredential{EncryptedFields: map[string]model.EncryptedField{}}

	row := db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&c.ID, &c.TenantID, &c.ConnectionID, &c.ProviderID, &c.Environment, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.EntityNotFoundError{EntityType: "banking_provider_credential"}
		}

		return nil, err
	}

	fq, fargs, err := sq.Select("field_key", "ciphertext", "nonce").
		From("banking_provider_credential_field").Where(sq.Eq{"credential_id": c.ID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fq, fargs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var f fieldRow
		if err := rows.Scan(&f.FieldKey, &f.Ciphertext, &f.Nonce); err != nil {
			return nil, err
		}

		c.EncryptedFields[f.FieldKey] = model.EncryptedField{Ciphertext: f.Ciphertext, Nonce: f.Nonce}
	}

	return c, rows.Err()
}
