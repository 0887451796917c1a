// Package audit is the AdminAuditEvent repository: append-only, written on
// every administrative mutation (§4.8, §6).
package audit

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=audit.mock.go --package=audit . Repository
type Repository interface {
	Append(ctx context.Context, e *model.AdminAuditEvent) error
	Recent(ctx context.Context, limit int) ([]*model.AdminAuditEvent, error)
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) Append(ctx context.Context, e *model.AdminAuditEvent) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	e.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	query, args, err := sq.Insert("admin_audit_event").
		Columns("id", "actor_user_id", "action", "target_type", "target_id", "payload", "created_at").
		Values(e.ID, e.ActorUserID, e.Action, e.TargetType, e.TargetID, payload, e.CreatedAt).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) Recent(ctx context.Context, limit int) ([]*model.AdminAuditEvent, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("id", "actor_user_id", "action", "target_type", "target_id", "payload", "created_at").
		From("admin_audit_event").OrderBy("created_at DESC").Limit(uint64(limit)).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AdminAuditEvent

	for rows.Next() {
		e := &model.AdminAuditEvent{}

		var payloadRaw []byte
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.TargetType, &e.TargetID, &payloadRaw, &e.CreatedAt); err != nil {
			return nil, err
		}

		if len(payloadRaw) > 0 {
			if err := json.Unmarshal(payloadRaw, &e.Payload); err != nil {
				return nil, err
			}
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
