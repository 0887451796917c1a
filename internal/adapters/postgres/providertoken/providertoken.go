// Package providertoken is the ProviderToken repository used exclusively by
// the credential vault (§4.3) — no other component reads ciphertext rows
// directly.
package providertoken

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

const pgUniqueViolation = "23505"

//go:generate mockgen --destination=providertoken.mock.go --package=providertoken . Repository
type Repository interface {
	// Upsert replaces any existing token for the connection atomically,
	// enforcing "at most one active token per connection" (§8 property 2).
	Upsert(ctx context.Context, t *model.ProviderToken) error
	Find(ctx context.Context, connectionID uuid.UUID) (*model.ProviderToken, error)
	Revoke(ctx context.Context, connectionID uuid.UUID) error
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) Upsert(ctx context.Context, t *model.ProviderToken) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(t.ProviderMetadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
		t.CreatedAt = now
	}

	t.UpdatedAt = now

	var refreshCiphertext, refreshNonce []byte
	if t.RefreshToken != nil {
		refreshCiphertext = t.RefreshToken.Ciphertext
		refreshNonce = t.RefreshToken.Nonce
	}

	query, args, err := sq.Insert("provider_token").
		Columns("id", "connection_id", "provider_id", "access_token_ciphertext", "access_token_nonce",
			"refresh_token_ciphertext", "refresh_token_nonce", "token_type", "expires_at", "scopes",
			"provider_user_id", "provider_metadata", "status", "created_at", "updated_at").
		Values(t.ID, t.ConnectionID, t.ProviderID, t.AccessToken.Ciphertext, t.AccessToken.Nonce,
			refreshCiphertext, refreshNonce, t.TokenType, t.ExpiresAt, pq.Array(t.Scopes),
			t.ProviderUserID, metadata, string(t.Status), t.CreatedAt, t.UpdatedAt).
		Suffix(`ON CONFLICT (connection_id) DO UPDATE SET
			access_token_ciphertext = EXCLUDED.access_token_ciphertext,
			access_token_nonce = EXCLUDED.access_token_nonce,
			refresh_token_ciphertext = EXCLUDED.refresh_token_ciphertext,
			refresh_token_nonce = EXCLUDED.refresh_token_nonce,
			token_type = EXCLUDED.token_type,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			provider_metadata = EXCLUDED.provider_metadata,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return apperr.EntityConflictError{EntityType: "provider_token", Message: "connection already has an active token", Err: err}
		}

		return err
	}

	return nil
}

func (r *PostgreSQLRepository) Find(ctx context.Context, connectionID uuid.UUID) (*model.ProviderToken, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("id", "connection_id", "provider_id", "access_token_ciphertext",
		"access_token_nonce", "refresh_token_ciphertext", "refresh_token_nonce", "token_type",
		"expires_at", "scopes", "provider_user_id", "provider_metadata", "status", "created_at", "updated_at").
		From("provider_token").Where(sq.Eq{"connection_id": connectionID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	t := &model.ProviderToken{}

	var metadataRaw []byte

	var refreshCiphertext, refreshNonce []byte

	row := db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&t.ID, &t.ConnectionID, &t.ProviderID, &t.AccessToken.Ciphertext,
		&t.AccessToken.Nonce, &refreshCiphertext, &refreshNonce, &t.TokenType, &t.ExpiresAt,
		pq.Array(&t.Scopes), &t.ProviderUserID, &metadataRaw, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.EntityNotFoundError{EntityType: "provider_token"}
		}

		return nil, err
	}

	if refreshCiphertext != nil {
		t.RefreshToken = &model.EncryptedField{Ciphertext: refreshCiphertext, Nonce: refreshNonce}
	}

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &t.ProviderMetadata); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (r *PostgreSQLRepository) Revoke(ctx context.Context, connectionID uuid.UUID) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Update("provider_token").
		Set("status", string(model.TokenStatusRevoked)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"connection_id": connectionID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}
