// Package mpostgres wraps the primary/replica Postgres connection pool and
// schema migrations, modeled on the teacher's common/mpostgres/postgres.go.
package mpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/banktrail/ingestor/internal/platform/mlog"
)

// PostgresConnection is a hub dealing with the primary/replica Postgres pool
// used by every internal/adapters/postgres repository. Reads prefer the
// replica; writes always go to the primary.
type PostgresConnection struct {
	ConnectionStringPrimary string
	ConnectionStringReplica string
	PrimaryDBName           string
	MigrationsPath          string
	Logger                  mlog.Logger

	ConnectionDB *dbresolver.DB
	Connected    bool
}

// Connect opens the primary and replica pools, runs pending migrations
// against the primary, and verifies connectivity.
func (pc *PostgresConnection) Connect() error {
	dbPrimary, err := sql.Open("pgx", pc.ConnectionStringPrimary)
	if err != nil {
		return fmt.Errorf("mpostgres: open primary: %w", err)
	}

	dbReplica, err := sql.Open("pgx", pc.ConnectionStringReplica)
	if err != nil {
		return fmt.Errorf("mpostgres: open replica: %w", err)
	}

	connectionDB := dbresolver.New(
		dbresolver.WithPrimaryDBs(dbPrimary),
		dbresolver.WithReplicaDBs(dbReplica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)

	if pc.MigrationsPath != "" {
		if err := pc.migrate(dbPrimary); err != nil {
			return err
		}
	}

	if err := connectionDB.Ping(); err != nil {
		return fmt.Errorf("mpostgres: ping: %w", err)
	}

	pc.Connected = true
	pc.ConnectionDB = &connectionDB

	pc.Logger.Info("mpostgres: connected to primary and replica")

	return nil
}

func (pc *PostgresConnection) migrate(dbPrimary *sql.DB) error {
	driver, err := postgres.WithInstance(dbPrimary, &postgres.Config{
		MultiStatementEnabled: true,
		DatabaseName:          pc.PrimaryDBName,
		SchemaName:            "public",
	})
	if err != nil {
		return fmt.Errorf("mpostgres: migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+pc.MigrationsPath, pc.PrimaryDBName, driver)
	if err != nil {
		return fmt.Errorf("mpostgres: load migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("mpostgres: apply migrations: %w", err)
	}

	return nil
}

// GetDB returns the resolver-backed pool, connecting lazily if necessary.
func (pc *PostgresConnection) GetDB(ctx context.Context) (dbresolver.DB, error) {
	if pc.ConnectionDB == nil {
		if err := pc.Connect(); err != nil {
			return nil, err
		}
	}

	return *pc.ConnectionDB, nil
}
