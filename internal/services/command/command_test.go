package command

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/banktrail/ingestor/internal/adapters/mongodb"
	"github.com/banktrail/ingestor/internal/adapters/postgres/account"
	"github.com/banktrail/ingestor/internal/adapters/postgres/audit"
	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/adapters/postgres/tenant"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/pkg/model"
)

type testDeps struct {
	accounts     *account.MockRepository
	connections  *connection.MockRepository
	transactions *transaction.MockRepository
	tenants      *tenant.MockRepository
	jobs         *ingestionjob.MockRepository
	auditRepo    *audit.MockRepository
	metadata     *mongodb.MockRepository
}

func newTestService(t *testing.T, ctrl *gomock.Controller) (*Service, testDeps) {
	t.Helper()

	d := testDeps{
		accounts:     account.NewMockRepository(ctrl),
		connections:  connection.NewMockRepository(ctrl),
		transactions: transaction.NewMockRepository(ctrl),
		tenants:      tenant.NewMockRepository(ctrl),
		jobs:         ingestionjob.NewMockRepository(ctrl),
		auditRepo:    audit.NewMockRepository(ctrl),
		metadata:     mongodb.NewMockRepository(ctrl),
	}

	svc := New(Deps{
		Accounts:     d.accounts,
		Connections:  d.connections,
		Transactions: d.transactions,
		Tenants:      d.tenants,
		Jobs:         d.jobs,
		Audit:        d.auditRepo,
		Metadata:     d.metadata,
		Logger:       &mlog.NoneLogger{},
	})

	return svc, d
}

func TestCreateAccount_ValidInput_NormalizesOptionalFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	input := model.CreateAccountInput{
		TenantID:    uuid.New(),
		AccountID:   "acct-1",
		AccountName: "Checking",
		AccountType: "checking",
		Currency:    "EUR",
		CreatedBy:   uuid.New(),
	}

	d.accounts.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, a *model.Account) (*model.Account, error) {
		assert.Nil(t, a.EntityID)
		assert.Nil(t, a.IBAN)
		assert.Equal(t, model.AccountStatusActive, a.AccountStatus)
		return a, nil
	})

	_, err := svc.CreateAccount(context.Background(), input)
	require.NoError(t, err)
}

func TestCreateAccount_MissingRequiredField_ReturnsValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, _ := newTestService(t, ctrl)

	_, err := svc.CreateAccount(context.Background(), model.CreateAccountInput{})
	require.Error(t, err)

	_, ok := err.(apperr.ValidationError)
	assert.True(t, ok)
}

func TestDeleteAccount_ReferencedAccount_RefusesDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	tenantID, id := uuid.New(), uuid.New()
	d.accounts.EXPECT().ReferenceCount(gomock.Any(), tenantID, id).Return(3, nil)

	err := svc.DeleteAccount(context.Background(), tenantID, id)
	require.Error(t, err)

	refErr, ok := err.(apperr.ReferencedEntityError)
	require.True(t, ok)
	assert.Equal(t, 3, refErr.ReferenceCount)
}

func TestDeleteAccount_Unreferenced_Deletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	tenantID, id := uuid.New(), uuid.New()
	d.accounts.EXPECT().ReferenceCount(gomock.Any(), tenantID, id).Return(0, nil)
	d.accounts.EXPECT().Delete(gomock.Any(), tenantID, id).Return(nil)

	err := svc.DeleteAccount(context.Background(), tenantID, id)
	require.NoError(t, err)
}

func TestUpdateSchedule_Success_AppendsAuditEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	actorID := uuid.New()
	input := model.UpdateScheduleInput{ConnectionID: uuid.New(), SyncSchedule: model.ScheduleDaily, SyncEnabled: true}

	d.connections.EXPECT().UpdateSchedule(gomock.Any(), input.ConnectionID, input.SyncSchedule, true).Return(nil)
	d.auditRepo.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *model.AdminAuditEvent) error {
		assert.Equal(t, actorID, e.ActorUserID)
		assert.Equal(t, "update_schedule", e.Action)
		return nil
	})

	err := svc.UpdateSchedule(context.Background(), actorID, input)
	require.NoError(t, err)
}

func TestBulkUpdateSchedules_ContinuesPastIndividualFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	actorID := uuid.New()
	ok := model.UpdateScheduleInput{ConnectionID: uuid.New(), SyncSchedule: model.ScheduleDaily}
	fails := model.UpdateScheduleInput{ConnectionID: uuid.New(), SyncSchedule: model.ScheduleHourly}

	d.connections.EXPECT().UpdateSchedule(gomock.Any(), ok.ConnectionID, ok.SyncSchedule, false).Return(nil)
	d.connections.EXPECT().UpdateSchedule(gomock.Any(), fails.ConnectionID, fails.SyncSchedule, false).
		Return(apperr.EntityNotFoundError{EntityType: "connection"})
	// UpdateSchedule only audits on success, so the failing input contributes
	// no audit call of its own; the bulk summary event still fires once.
	d.auditRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	results := svc.BulkUpdateSchedules(context.Background(), actorID, []model.UpdateScheduleInput{ok, fails})

	assert.NoError(t, results[ok.ConnectionID])
	assert.Error(t, results[fails.ConnectionID])
}

func TestRemoveOwnerGuard_LastOwner_RefusesRemoval(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	tenantID := uuid.New()
	d.tenants.EXPECT().OwnerCount(gomock.Any(), tenantID).Return(1, nil)

	err := svc.RemoveOwnerGuard(context.Background(), tenantID)
	require.Error(t, err)

	_, ok := err.(apperr.IntegrityError)
	assert.True(t, ok)
}

func TestRemoveOwnerGuard_MultipleOwners_Allows(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	tenantID := uuid.New()
	d.tenants.EXPECT().OwnerCount(gomock.Any(), tenantID).Return(2, nil)

	err := svc.RemoveOwnerGuard(context.Background(), tenantID)
	require.NoError(t, err)
}

func TestSetEntityMetadata_Success_AppendsAuditEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	actorID := uuid.New()
	payload := map[string]any{"note": "manual correction"}

	d.metadata.EXPECT().Upsert(gomock.Any(), "account", "entity-1", payload).Return(nil)
	d.auditRepo.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *model.AdminAuditEvent) error {
		assert.Equal(t, "set_entity_metadata", e.Action)
		require.NotNil(t, e.TargetID)
		assert.Equal(t, "entity-1", *e.TargetID)
		return nil
	})

	err := svc.SetEntityMetadata(context.Background(), actorID, "account", "entity-1", payload)
	require.NoError(t, err)
}

func TestCreateTenant_MissingRequiredField_ReturnsValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, _ := newTestService(t, ctrl)

	_, err := svc.CreateTenant(context.Background(), model.CreateTenantInput{})
	require.Error(t, err)

	_, ok := err.(apperr.ValidationError)
	assert.True(t, ok)
}
