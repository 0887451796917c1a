// Package historyevent is the ConnectionHistoryEvent repository: an
// append-only trail of reconnections, token refreshes, revocations, and
// errors (§4.5, §4.8).
package historyevent

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=historyevent.mock.go --package=historyevent . Repository
type Repository interface {
	Append(ctx context.Context, e *model.ConnectionHistoryEvent) error
	ListForConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*model.ConnectionHistoryEvent, error)
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) Append(ctx context.Context, e *model.ConnectionHistoryEvent) error {
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

	query, args, err := sq.Insert("connection_history_event").
		Columns("id", "tenant_id", "connection_id", "previous_connection_id", "event_type", "payload", "created_at").
		Values(e.ID, e.TenantID, e.ConnectionID, e.PreviousConnectionID, string(e.EventType), payload, e.CreatedAt).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) ListForConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]*model.ConnectionHistoryEvent, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("id", "tenant_id", "connection_id", "previous_connection_id", "event_type", "payload", "created_at").
		From("connection_history_event").Where(sq.Eq{"connection_id": connectionID}).
		OrderBy("created_at DESC").Limit(uint64(limit)).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ConnectionHistoryEvent

	for rows.Next() {
		e := &model.ConnectionHistoryEvent{}

		var payloadRaw []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ConnectionID, &e.PreviousConnectionID, &e.EventType, &payloadRaw, &e.CreatedAt); err != nil {
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
