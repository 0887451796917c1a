// Package query is the read-side service facade (C1, §4.1, §6): tenant-
// scoped account/transaction/connection reads, plus the fleet-wide admin
// reads that deliberately bypass tenant isolation (§6).
package query

import (
	"context"

	"github.com/google/uuid"

	"github.com/banktrail/ingestor/internal/adapters/mongodb"
	"github.com/banktrail/ingestor/internal/adapters/postgres/account"
	"github.com/banktrail/ingestor/internal/adapters/postgres/audit"
	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/historyevent"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/adapters/postgres/tenant"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/pkg/model"
)

// Deps bundles everything the query service needs.
type Deps struct {
	Accounts     account.Repository
	Connections  connection.Repository
	Transactions transaction.Repository
	Tenants      tenant.Repository
	Jobs         ingestionjob.Repository
	History      historyevent.Repository
	Audit        audit.Repository
	Metadata     mongodb.Repository
	Logger       mlog.Logger
}

type Service struct {
	deps Deps
}

func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// GetAccounts lists a tenant's accounts, left-joined against their
// connection's snapshot (§4.1).
func (s *Service) GetAccounts(ctx context.Context, tenantID uuid.UUID, filters model.AccountFilters) ([]*model.Account, error) {
	return s.deps.Accounts.FindAll(ctx, tenantID, filters)
}

// GetAccount fetches one tenant-scoped account by internal id.
func (s *Service) GetAccount(ctx context.Context, tenantID, id uuid.UUID) (*model.Account, error) {
	return s.deps.Accounts.Find(ctx, tenantID, id)
}

// GetTransactions lists one account's transactions.
func (s *Service) GetTransactions(ctx context.Context, tenantID, accountID uuid.UUID, includeRemoved bool) ([]*model.Transaction, error) {
	return s.deps.Transactions.ListForAccount(ctx, tenantID, accountID, includeRemoved)
}

// GetConnection fetches one tenant-scoped connection.
func (s *Service) GetConnection(ctx context.Context, tenantID, id uuid.UUID) (*model.Connection, error) {
	return s.deps.Connections.Find(ctx, tenantID, id)
}

// ConnectionHistory returns a connection's lifecycle audit trail (§4.5,
// §4.8): reconnections, token refreshes, revocations, errors.
func (s *Service) ConnectionHistory(ctx context.Context, connectionID uuid.UUID, limit int) ([]*model.ConnectionHistoryEvent, error) {
	return s.deps.History.ListForConnection(ctx, connectionID, limit)
}

// ListConnectionsFleetWide is an admin-only, cross-tenant read (§4.1, §6):
// every call writes an AdminAuditEvent itself since it deliberately bypasses
// tenant isolation.
func (s *Service) ListConnectionsFleetWide(ctx context.Context, actorUserID uuid.UUID, filters connection.FleetFilters) ([]*model.Connection, error) {
	conns, err := s.deps.Connections.ListFleetWide(ctx, filters)

	s.audit(ctx, actorUserID, "list_connections_fleet_wide", "connection", "", map[string]any{
		"filters": filters,
		"error":   errString(err),
	})

	return conns, err
}

// FleetHealth reports every connection's current health verdict, grouped by
// status, for the admin health dashboard (§4.7, §6).
type FleetHealth struct {
	Healthy  int                 `json:"healthy"`
	Warning  int                 `json:"warning"`
	Critical int                 `json:"critical"`
	Details  []*model.Connection `json:"details"`
}

func (s *Service) FleetHealth(ctx context.Context, actorUserID uuid.UUID, filters connection.FleetFilters) (*FleetHealth, error) {
	conns, err := s.deps.Connections.ListFleetWide(ctx, filters)

	s.audit(ctx, actorUserID, "fleet_health", "connection", "", map[string]any{
		"filters": filters,
		"error":   errString(err),
	})

	if err != nil {
		return nil, err
	}

	out := &FleetHealth{Details: conns}

	for _, c := range conns {
		switch c.HealthStatus {
		case model.HealthHealthy:
			out.Healthy++
		case model.HealthWarning:
			out.Warning++
		case model.HealthCritical:
			out.Critical++
		}
	}

	return out, nil
}

// RecentJobs returns the most recent ingestion jobs fleet-wide, or scoped
// to one tenant when tenantID is non-nil (§4.8, §6). The fleet-wide form
// (tenantID == nil) bypasses tenant isolation and is audited like the other
// fleet-wide reads; a tenant-scoped call is not an admin operation and is
// not audited.
func (s *Service) RecentJobs(ctx context.Context, actorUserID uuid.UUID, tenantID *uuid.UUID, limit int) ([]*model.IngestionJob, error) {
	jobs, err := s.deps.Jobs.Recent(ctx, limit, tenantID)

	if tenantID == nil {
		s.audit(ctx, actorUserID, "recent_jobs_fleet_wide", "ingestion_job", "", map[string]any{
			"limit": limit,
			"error": errString(err),
		})
	}

	return jobs, err
}

// RecentAuditEvents returns the most recent administrative mutations (§6).
func (s *Service) RecentAuditEvents(ctx context.Context, limit int) ([]*model.AdminAuditEvent, error) {
	return s.deps.Audit.Recent(ctx, limit)
}

// EntityMetadata reads one entity's opaque provider-field side-store (§9).
func (s *Service) EntityMetadata(ctx context.Context, collection, entityID string) (*mongodb.Metadata, error) {
	return s.deps.Metadata.FindByEntity(ctx, collection, entityID)
}

// HasMembership is the tenant-isolation predicate every HTTP handler checks
// before dispatching to a tenant-scoped read or write (§4.1, §8 property 1).
func (s *Service) HasMembership(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	return s.deps.Tenants.HasMembership(ctx, userID, tenantID)
}

func (s *Service) audit(ctx context.Context, actorUserID uuid.UUID, action, targetType, targetID string, payload map[string]any) {
	event := &model.AdminAuditEvent{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		Payload:     payload,
	}

	if targetID != "" {
		event.TargetID = &targetID
	}

	if err := s.deps.Audit.Append(ctx, event); err != nil {
		s.deps.Logger.Errorf("query: failed to append audit event %q: %v", action, err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
