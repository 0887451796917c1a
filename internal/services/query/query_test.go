package query

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
	"github.com/banktrail/ingestor/internal/adapters/postgres/historyevent"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/adapters/postgres/tenant"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/pkg/model"
)

type testDeps struct {
	accounts     *account.MockRepository
	connections  *connection.MockRepository
	transactions *transaction.MockRepository
	tenants      *tenant.MockRepository
	jobs         *ingestionjob.MockRepository
	history      *historyevent.MockRepository
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
		history:      historyevent.NewMockRepository(ctrl),
		auditRepo:    audit.NewMockRepository(ctrl),
		metadata:     mongodb.NewMockRepository(ctrl),
	}

	svc := New(Deps{
		Accounts:     d.accounts,
		Connections:  d.connections,
		Transactions: d.transactions,
		Tenants:      d.tenants,
		Jobs:         d.jobs,
		History:      d.history,
		Audit:        d.auditRepo,
		Metadata:     d.metadata,
		Logger:       &mlog.NoneLogger{},
	})

	return svc, d
}

func TestGetAccounts_DelegatesToRepository(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	tenantID := uuid.New()
	filters := model.AccountFilters{Limit: 10}
	want := []*model.Account{{ID: uuid.New()}}

	d.accounts.EXPECT().FindAll(gomock.Any(), tenantID, filters).Return(want, nil)

	got, err := svc.GetAccounts(context.Background(), tenantID, filters)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFleetHealth_BucketsConnectionsByStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	actorID := uuid.New()
	filters := connection.FleetFilters{Limit: 100}
	conns := []*model.Connection{
		{ID: uuid.New(), HealthStatus: model.HealthHealthy},
		{ID: uuid.New(), HealthStatus: model.HealthHealthy},
		{ID: uuid.New(), HealthStatus: model.HealthWarning},
		{ID: uuid.New(), HealthStatus: model.HealthCritical},
	}

	d.connections.EXPECT().ListFleetWide(gomock.Any(), filters).Return(conns, nil)
	d.auditRepo.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *model.AdminAuditEvent) error {
		assert.Equal(t, actorID, e.ActorUserID)
		assert.Equal(t, "fleet_health", e.Action)
		return nil
	})

	fh, err := svc.FleetHealth(context.Background(), actorID, filters)
	require.NoError(t, err)
	assert.Equal(t, 2, fh.Healthy)
	assert.Equal(t, 1, fh.Warning)
	assert.Equal(t, 1, fh.Critical)
	assert.Len(t, fh.Details, 4)
}

func TestFleetHealth_PropagatesRepositoryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	actorID := uuid.New()
	filters := connection.FleetFilters{}
	boom := assert.AnError

	d.connections.EXPECT().ListFleetWide(gomock.Any(), filters).Return(nil, boom)
	d.auditRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.FleetHealth(context.Background(), actorID, filters)
	require.Error(t, err)
	assert.Equal(t, boom, err)
}

func TestRecentJobs_ScopedToTenant(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	actorID := uuid.New()
	tenantID := uuid.New()
	want := []*model.IngestionJob{{ID: uuid.New(), TenantID: tenantID}}

	d.jobs.EXPECT().Recent(gomock.Any(), 25, &tenantID).Return(want, nil)
	// Tenant-scoped reads are not an admin operation: no audit event.

	got, err := svc.RecentJobs(context.Background(), actorID, &tenantID, 25)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecentJobs_FleetWideWhenTenantNil(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	actorID := uuid.New()
	want := []*model.IngestionJob{{ID: uuid.New()}}
	d.jobs.EXPECT().Recent(gomock.Any(), 10, (*uuid.UUID)(nil)).Return(want, nil)
	d.auditRepo.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *model.AdminAuditEvent) error {
		assert.Equal(t, actorID, e.ActorUserID)
		assert.Equal(t, "recent_jobs_fleet_wide", e.Action)
		return nil
	})

	got, err := svc.RecentJobs(context.Background(), actorID, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHasMembership_DelegatesToTenantRepository(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	userID, tenantID := uuid.New(), uuid.New()
	d.tenants.EXPECT().HasMembership(gomock.Any(), userID, tenantID).Return(true, nil)

	ok, err := svc.HasMembership(context.Background(), userID, tenantID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnectionHistory_DelegatesToHistoryRepository(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	connectionID := uuid.New()
	want := []*model.ConnectionHistoryEvent{{ID: uuid.New(), ConnectionID: connectionID}}

	d.history.EXPECT().ListForConnection(gomock.Any(), connectionID, 50).Return(want, nil)

	got, err := svc.ConnectionHistory(context.Background(), connectionID, 50)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEntityMetadata_DelegatesToMetadataRepository(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, d := newTestService(t, ctrl)

	want := &mongodb.Metadata{EntityID: "entity-1"}
	d.metadata.EXPECT().FindByEntity(gomock.Any(), "account", "entity-1").Return(want, nil)

	got, err := svc.EntityMetadata(context.Background(), "account", "entity-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
