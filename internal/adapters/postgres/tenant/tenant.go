// Package tenant is the Tenant/Membership repository.
package tenant

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

//go:generate mockgen --destination=tenant.mock.go --package=tenant . Repository
type Repository interface {
	Create(ctx context.Context, input model.CreateTenantInput) (*model.Tenant, error)
	Find(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*model.Tenant, error)
	AddMembership(ctx context.Context, m model.Membership) error
	Memberships(ctx context.Context, userID uuid.UUID) ([]model.Membership, error)
	HasMembership(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
	OwnerCount(ctx context.Context, tenantID uuid.UUID) (int, error)
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) Create(ctx context.Context, input model.CreateTenantInput) (*model.Tenant, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	t := &model.Tenant{
		ID:        uuid.New(),
		Slug:      input.Slug,
		Plan:      input.Plan,
		Settings:  input.Settings,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	query, args, err := sq.Insert("tenant").
		Columns("id", "slug", "plan", "currency", "timezone", "date_format", "created_at", "updated_at").
		Values(t.ID, t.Slug, t.Plan, t.Settings.Currency, t.Settings.Timezone, t.Settings.DateFormat, t.CreatedAt, t.UpdatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	if err := r.AddMembership(ctx, model.Membership{UserID: input.OwnerID, TenantID: t.ID, Role: model.RoleOwner, CreatedAt: t.CreatedAt}); err != nil {
		return nil, err
	}

	return t, nil
}

func (r *PostgreSQLRepository) Find(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	return r.findBy(ctx, sq.Eq{"id": id})
}

func (r *PostgreSQLRepository) FindBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	return r.findBy(ctx, sq.Eq{"slug": slug})
}

func (r *PostgreSQLRepository) findBy(ctx context.Context, pred sq.Eq) (*model.Tenant, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("id", "slug", "plan", "currency", "timezone", "date_format", "created_at", "updated_at").
		From("tenant").Where(pred).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	t := &model.Tenant{}

	row := db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&t.ID, &t.Slug, &t.Plan, &t.Settings.Currency, &t.Settings.Timezone, &t.Settings.DateFormat, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.EntityNotFoundError{EntityType: "tenant"}
		}

		return nil, err
	}

	return t, nil
}

func (r *PostgreSQLRepository) AddMembership(ctx context.Context, m model.Membership) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Insert("membership").
		Columns("user_id", "tenant_id", "role", "created_at").
		Values(m.UserID, m.TenantID, string(m.Role), m.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) Memberships(ctx context.Context, userID uuid.UUID) ([]model.Membership, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("user_id", "tenant_id", "role", "created_at").
		From("membership").Where(sq.Eq{"user_id": userID}).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Membership

	for rows.Next() {
		var m model.Membership

		var role string
		if err := rows.Scan(&m.UserID, &m.TenantID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}

		m.Role = model.Role(role)
		out = append(out, m)
	}

	return out, rows.Err()
}

// HasMembership is the tenant-isolation predicate every read/write checks
// before touching a row (§4.1, §8 property 1).
func (r *PostgreSQLRepository) HasMembership(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return false, err
	}

	query, args, err := sq.Select("count(*)").From("membership").
		Where(sq.Eq{"user_id": userID, "tenant_id": tenantID}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return false, err
	}

	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *PostgreSQLRepository) OwnerCount(ctx context.Context, tenantID uuid.UUID) (int, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Select("count(*)").From("membership").
		Where(sq.Eq{"tenant_id": tenantID, "role": string(model.RoleOwner)}).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = db.QueryRowContext(ctx, query, args...).Scan(&count)

	return count, err
}
