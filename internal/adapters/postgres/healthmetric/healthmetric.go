// Package healthmetric is the SystemHealthMetric repository (§4.7, §4.8):
// one fleet-aggregate row per metric per tick.
package healthmetric

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/pkg/model"
)

//go:generate mockgen --destination=healthmetric.mock.go --package=healthmetric . Repository
type Repository interface {
	Record(ctx context.Context, m *model.SystemHealthMetric) error
	Latest(ctx context.Context, metricName string) (*model.SystemHealthMetric, error)
}

type PostgreSQLRepository struct {
	connection *mpostgres.PostgresConnection
}

func NewPostgreSQLRepository(pc *mpostgres.PostgresConnection) *PostgreSQLRepository {
	return &PostgreSQLRepository{connection: pc}
}

func (r *PostgreSQLRepository) Record(ctx context.Context, m *model.SystemHealthMetric) error {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return err
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	m.RecordedAt = time.Now().UTC()

	query, args, err := sq.Insert("system_health_metric").
		Columns("id", "metric_name", "value", "unit", "status", "recorded_at").
		Values(m.ID, m.MetricName, m.Value, m.Unit, string(m.Status), m.RecordedAt).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, query, args...)

	return err
}

func (r *PostgreSQLRepository) Latest(ctx context.Context, metricName string) (*model.SystemHealthMetric, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("id", "metric_name", "value", "unit", "status", "recorded_at").
		From("system_health_metric").Where(sq.Eq{"metric_name": metricName}).
		OrderBy("recorded_at DESC").Limit(1).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	m := &model.SystemHealthMetric{}
	err = db.QueryRowContext(ctx, query, args...).Scan(&m.ID, &m.MetricName, &m.Value, &m.Unit, &m.Status, &m.RecordedAt)

	return m, err
}
