// Package command is the write-side service facade (C1, §4.1, §6): account
// CRUD, connection provisioning, and admin mutations, each wrapped in the
// tenant-isolation predicate and, for admin operations, an AdminAuditEvent.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/go-playground/validator.v9"

	"github.com/banktrail/ingestor/internal/adapters/mongodb"
	"github.com/banktrail/ingestor/internal/adapters/postgres/account"
	"github.com/banktrail/ingestor/internal/adapters/postgres/audit"
	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/adapters/postgres/tenant"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/engine"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/scheduler"
	"github.com/banktrail/ingestor/pkg/model"
)

var validate = validator.New()

// Deps bundles everything the command service needs.
type Deps struct {
	Accounts     account.Repository
	Connections  connection.Repository
	Transactions transaction.Repository
	Tenants      tenant.Repository
	Jobs         ingestionjob.Repository
	Audit        audit.Repository
	Metadata     mongodb.Repository
	Dispatcher   *scheduler.Dispatcher
	Logger       mlog.Logger
}

type Service struct {
	deps Deps
}

func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// CreateAccount provisions a manual (unlinked) account (§4.1).
func (s *Service) CreateAccount(ctx context.Context, input model.CreateAccountInput) (*model.Account, error) {
	if err := validate.Struct(input); err != nil {
		return nil, apperr.ValidationError{Message: err.Error(), Err: err}
	}

	a := &model.Account{
		ID:            uuid.New(),
		AccountID:     input.AccountID,
		TenantID:      input.TenantID,
		AccountName:   input.AccountName,
		AccountType:   input.AccountType,
		Currency:      input.Currency,
		AccountStatus: model.AccountStatusActive,
		CreatedBy:     input.CreatedBy,
	}

	if input.EntityID != "" {
		a.EntityID = &input.EntityID
	}

	if input.IBAN != "" {
		a.IBAN = &input.IBAN
	}

	if input.BIC != "" {
		a.BIC = &input.BIC
	}

	if input.BankName != "" {
		a.BankName = &input.BankName
	}

	return s.deps.Accounts.Create(ctx, a)
}

// UpdateAccount applies a partial update (§4.1). Synced fields (connection
// linkage, currency, balances) are never mutable through this path.
func (s *Service) UpdateAccount(ctx context.Context, tenantID, id uuid.UUID, input model.UpdateAccountInput) (*model.Account, error) {
	return s.deps.Accounts.Update(ctx, tenantID, id, input)
}

// DeleteAccount removes an account that no transaction currently
// references (§4.1 edge case: referenced accounts are never deletable).
func (s *Service) DeleteAccount(ctx context.Context, tenantID, id uuid.UUID) error {
	count, err := s.deps.Accounts.ReferenceCount(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if count > 0 {
		return apperr.ReferencedEntityError{EntityType: "account", ReferenceCount: count}
	}

	return s.deps.Accounts.Delete(ctx, tenantID, id)
}

// UpsertTransactionByExternalID is the idempotent write path both the sync
// engine and any manual correction use (§4.1, §8 properties 5/6).
func (s *Service) UpsertTransactionByExternalID(ctx context.Context, tenantID, connectionID uuid.UUID, externalID string, fields model.UpsertTransactionFields) error {
	return s.deps.Transactions.UpsertByExternalID(ctx, tenantID, connectionID, externalID, fields)
}

// CreateConnection provisions a pending Connection awaiting authorization
// (§4.1, §4.2). The OAuth/token-exchange flow that follows owns moving it
// to active.
func (s *Service) CreateConnection(ctx context.Context, input model.CreateConnectionInput) (*model.Connection, error) {
	if err := validate.Struct(input); err != nil {
		return nil, apperr.ValidationError{Message: err.Error(), Err: err}
	}

	return s.deps.Connections.Create(ctx, input)
}

// TriggerSync runs one connection's sync immediately, outside its regular
// schedule bucket (§6 admin operations), under the same per-connection
// lease a scheduler tick would hold, and records the mutation.
func (s *Service) TriggerSync(ctx context.Context, actorUserID, connectionID uuid.UUID) (*engine.Result, error) {
	result, err := s.deps.Dispatcher.TriggerNow(ctx, connectionID)

	s.audit(ctx, actorUserID, "trigger_sync", "connection", connectionID.String(), map[string]any{
		"triggered_at": time.Now().UTC(),
		"error":        errString(err),
	})

	return result, err
}

// UpdateSchedule changes one connection's dispatch bucket (§6).
func (s *Service) UpdateSchedule(ctx context.Context, actorUserID uuid.UUID, input model.UpdateScheduleInput) error {
	if err := s.deps.Connections.UpdateSchedule(ctx, input.ConnectionID, input.SyncSchedule, input.SyncEnabled); err != nil {
		return err
	}

	s.audit(ctx, actorUserID, "update_schedule", "connection", input.ConnectionID.String(), map[string]any{
		"sync_schedule": string(input.SyncSchedule),
		"sync_enabled":  input.SyncEnabled,
	})

	return nil
}

// BulkUpdateSchedules applies UpdateSchedule across many connections in one
// administrative action, continuing past individual failures and reporting
// them back rather than aborting the batch (§6).
func (s *Service) BulkUpdateSchedules(ctx context.Context, actorUserID uuid.UUID, inputs []model.UpdateScheduleInput) map[uuid.UUID]error {
	results := make(map[uuid.UUID]error, len(inputs))

	for _, in := range inputs {
		results[in.ConnectionID] = s.UpdateSchedule(ctx, actorUserID, in)
	}

	s.audit(ctx, actorUserID, "bulk_update_schedules", "connection", "", map[string]any{
		"count": len(inputs),
	})

	return results
}

// CreateTenant provisions a tenant with its founding owner membership
// (§4.1). HasMembership/OwnerCount keep the invariant that every tenant
// retains at least one owner.
func (s *Service) CreateTenant(ctx context.Context, input model.CreateTenantInput) (*model.Tenant, error) {
	if err := validate.Struct(input); err != nil {
		return nil, apperr.ValidationError{Message: err.Error(), Err: err}
	}

	return s.deps.Tenants.Create(ctx, input)
}

// AddMembership grants userID a role within tenantID.
func (s *Service) AddMembership(ctx context.Context, m model.Membership) error {
	return s.deps.Tenants.AddMembership(ctx, m)
}

// RemoveOwnerGuard refuses to demote or remove the last owner membership of
// a tenant (§4.1 invariant). Callers that implement membership removal or
// role changes must check this first.
func (s *Service) RemoveOwnerGuard(ctx context.Context, tenantID uuid.UUID) error {
	count, err := s.deps.Tenants.OwnerCount(ctx, tenantID)
	if err != nil {
		return err
	}

	if count <= 1 {
		return apperr.IntegrityError{EntityType: "membership", Reason: fmt.Sprintf("tenant %s must retain at least one owner", tenantID)}
	}

	return nil
}

// SetEntityMetadata overwrites one entity's opaque provider-field side-store
// (§9): fields the typed Postgres columns have no room for, keyed by
// collection name (account, connection, transaction, ...) and entity id.
// Every call is audited since it is an admin-only operation.
func (s *Service) SetEntityMetadata(ctx context.Context, actorUserID uuid.UUID, collection, entityID string, metadata map[string]any) error {
	if err := s.deps.Metadata.Upsert(ctx, collection, entityID, metadata); err != nil {
		return err
	}

	s.audit(ctx, actorUserID, "set_entity_metadata", collection, entityID, metadata)

	return nil
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
		s.deps.Logger.Errorf("command: failed to append audit event %q: %v", action, err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
