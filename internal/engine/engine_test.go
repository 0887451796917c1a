package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/banktrail/ingestor/internal/adapters/postgres/account"
	"github.com/banktrail/ingestor/internal/adapters/postgres/bankingcredential"
	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/cursor"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/adapters/postgres/provideraccount"
	"github.com/banktrail/ingestor/internal/adapters/postgres/providertoken"
	"github.com/banktrail/ingestor/internal/adapters/postgres/rawtransaction"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/internal/vault"
	"github.com/banktrail/ingestor/pkg/model"
)

// fakeAdapter is a hand-written stand-in for a provider.Adapter: the
// registry is a concrete type built around the interface, so a struct
// literal is simpler here than a generated mock.
type fakeAdapter struct {
	descriptor model.CapabilityDescriptor
	accounts   []provider.RawAccount
	page       model.TransactionPage
}

func (f *fakeAdapter) Describe() model.CapabilityDescriptor { return f.descriptor }

func (f *fakeAdapter) GetAuthorizationURL(ctx context.Context, state, redirectURI string) (string, error) {
	return "", nil
}

func (f *fakeAdapter) CreateLinkToken(ctx context.Context, userRef string) (string, error) {
	return "", nil
}

func (f *fakeAdapter) ExchangeCodeForToken(ctx context.Context, code string) (model.Tokens, error) {
	return model.Tokens{}, nil
}

func (f *fakeAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (model.Tokens, error) {
	return model.Tokens{}, nil
}

func (f *fakeAdapter) FetchUserInfo(ctx context.Context, tokens model.Tokens) (provider.ProviderUserInfo, error) {
	return provider.ProviderUserInfo{}, nil
}

func (f *fakeAdapter) FetchRawAccounts(ctx context.Context, credentials provider.Credentials) ([]provider.RawAccount, model.InstitutionFingerprint, error) {
	return f.accounts, model.InstitutionFingerprint{InstitutionID: "inst-1"}, nil
}

func (f *fakeAdapter) SyncTransactions(ctx context.Context, credentials provider.Credentials, pageCursor, externalAccountID string) (model.TransactionPage, error) {
	if pageCursor != "" {
		return model.TransactionPage{}, nil
	}

	return f.page, nil
}

const testProviderID = "testbank"

func testDescriptor() model.CapabilityDescriptor {
	return model.CapabilityDescriptor{
		ProviderID:                testProviderID,
		DisplayName:               "Test Bank",
		IntegrationType:           model.IntegrationOAuthRedirect,
		SupportsAccounts:          true,
		SupportsTransactions:      true,
		ConnectionLevelPagination: true,
	}
}

// seededVault builds a real Vault (AES-GCM sealing) backed by mock token and
// credential repositories, and stores one OAuth token for connectionID so
// Vault.AccessToken resolves without hitting a refresh path.
func seededVault(t *testing.T, ctrl *gomock.Controller, registry *provider.Registry, connectionID uuid.UUID) *vault.Vault {
	t.Helper()

	tokens := providertoken.NewMockRepository(ctrl)
	creds := bankingcredential.NewMockRepository(ctrl)

	v, err := vault.New([]byte("0123456789abcdef"), tokens, creds, registry, &mlog.NoneLogger{})
	require.NoError(t, err)

	far := time.Now().Add(24 * time.Hour)

	var stored *model.ProviderToken

	tokens.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec *model.ProviderToken) error {
		stored = rec
		return nil
	})

	tokens.EXPECT().Find(gomock.Any(), connectionID).AnyTimes().DoAndReturn(func(context.Context, uuid.UUID) (*model.ProviderToken, error) {
		return stored, nil
	})

	err = v.StoreTokens(context.Background(), connectionID, testProviderID, model.Tokens{
		AccessToken: "plaintext-access-token",
		TokenType:   "Bearer",
		ExpiresAt:   &far,
	}, nil, nil)
	require.NoError(t, err)

	return v
}

func TestRun_SuccessfulSync_ImportsAccountAndTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)

	connectionID := uuid.New()
	tenantID := uuid.New()
	createdBy := uuid.New()

	conn := &model.Connection{
		ID:              connectionID,
		TenantID:        tenantID,
		ProviderID:      testProviderID,
		Status:          model.ConnectionStatusActive,
		IntegrationType: model.IntegrationOAuthRedirect,
		SyncSchedule:    model.ScheduleDaily,
		SyncEnabled:     true,
		CreatedBy:       createdBy,
	}

	registry := provider.NewRegistry()
	adapter := &fakeAdapter{
		descriptor: testDescriptor(),
		accounts: []provider.RawAccount{
			{ExternalAccountID: "ext-acc-1", Type: "checking", Currency: "EUR", Balance: "100.00", Status: "active"},
		},
		page: model.TransactionPage{
			Added: []model.RawTransaction{
				{
					ExternalAccountID:     "ext-acc-1",
					ExternalTransactionID: "ext-tx-1",
					Amount:                "-12.50",
					Currency:              "EUR",
					Date:                  time.Now(),
				},
			},
			HasMore: false,
		},
	}
	registry.Register(adapter)

	v := seededVault(t, ctrl, registry, connectionID)

	connections := connection.NewMockRepository(ctrl)
	accounts := account.NewMockRepository(ctrl)
	providerAccounts := provideraccount.NewMockRepository(ctrl)
	transactions := transaction.NewMockRepository(ctrl)
	rawTransactions := rawtransaction.NewMockRepository(ctrl)
	cursors := cursor.NewMockRepository(ctrl)
	jobs := ingestionjob.NewMockRepository(ctrl)

	jobID := uuid.New()

	connections.EXPECT().FindAny(gomock.Any(), connectionID).Return(conn, nil)
	jobs.EXPECT().Open(gomock.Any(), tenantID, connectionID, "sync").Return(&model.IngestionJob{
		ID:           jobID,
		TenantID:     tenantID,
		ConnectionID: connectionID,
		JobType:      "sync",
		Status:       model.JobInProgress,
		StartedAt:    time.Now(),
	}, nil)

	connections.EXPECT().SetInstitutionID(gomock.Any(), connectionID, "inst-1").Return(nil)

	createdAccountID := uuid.New()
	accounts.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, a *model.Account) (*model.Account, error) {
		a.ID = createdAccountID
		return a, nil
	})

	var storedProviderAccount *model.ProviderAccount
	providerAccounts.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, pa *model.ProviderAccount) (*model.ProviderAccount, error) {
		storedProviderAccount = pa
		return pa, nil
	}).Times(2)

	cursors.EXPECT().Load(gomock.Any(), connectionID).Return(&model.ProviderSyncCursor{ConnectionID: connectionID}, nil)
	rawTransactions.EXPECT().StagePage(gomock.Any(), tenantID, connectionID, gomock.Any()).Return(nil)
	cursors.EXPECT().Persist(gomock.Any(), gomock.Any()).Return(nil)

	stagedRow := &model.ProviderRawTransaction{
		ID:                    uuid.New(),
		ExternalTransactionID: "ext-tx-1",
		SyncAction:            model.SyncActionAdded,
	}

	rawTransactions.EXPECT().ListPendingImport(gomock.Any(), connectionID).DoAndReturn(func(context.Context, uuid.UUID) ([]*model.ProviderRawTransaction, error) {
		raw, err := encodeRawTransaction(model.RawTransaction{
			ExternalAccountID:     "ext-acc-1",
			ExternalTransactionID: "ext-tx-1",
			Amount:                "-12.50",
			Currency:              "EUR",
			Date:                  time.Now(),
		})
		require.NoError(t, err)
		stagedRow.RawData = raw

		return []*model.ProviderRawTransaction{stagedRow}, nil
	})

	transactions.EXPECT().UpsertByExternalID(gomock.Any(), tenantID, connectionID, "ext-tx-1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _, _ uuid.UUID, _ string, fields model.UpsertTransactionFields) error {
			assert.Equal(t, createdAccountID, fields.AccountID)
			assert.Equal(t, model.TransactionDebit, fields.Type)
			return nil
		})

	rawTransactions.EXPECT().MarkImported(gomock.Any(), []uuid.UUID{stagedRow.ID}).Return(nil)

	jobs.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil)
	connections.EXPECT().RecordSyncOutcome(gomock.Any(), connectionID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, outcome model.SyncOutcome) error {
			assert.True(t, outcome.Success)
			return nil
		})

	deps := Deps{
		Connections:      connections,
		Accounts:         accounts,
		ProviderAccounts: providerAccounts,
		Transactions:     transactions,
		RawTransactions:  rawTransactions,
		Cursors:          cursors,
		Jobs:             jobs,
		Vault:            v,
		Registry:         registry,
		RateLimiters:     provider.NewRateLimiters(map[string]float64{testProviderID: 1000}, 10),
		Logger:           &mlog.NoneLogger{},
	}

	result, err := New(deps).Run(context.Background(), connectionID)

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, model.JobCompleted, result.Job.Status)
	assert.Equal(t, 1, result.Job.RecordsImported)
	require.NotNil(t, storedProviderAccount.AccountID)
	assert.Equal(t, createdAccountID, *storedProviderAccount.AccountID)
}

func TestRun_RateLimitExhausted_SkipsWithoutFailingJob(t *testing.T) {
	ctrl := gomock.NewController(t)

	connectionID := uuid.New()
	tenantID := uuid.New()

	conn := &model.Connection{
		ID:              connectionID,
		TenantID:        tenantID,
		ProviderID:      testProviderID,
		Status:          model.ConnectionStatusActive,
		IntegrationType: model.IntegrationOAuthRedirect,
		SyncSchedule:    model.ScheduleDaily,
	}

	registry := provider.NewRegistry()
	registry.Register(&fakeAdapter{descriptor: testDescriptor()})

	connections := connection.NewMockRepository(ctrl)
	accounts := account.NewMockRepository(ctrl)
	providerAccounts := provideraccount.NewMockRepository(ctrl)
	transactions := transaction.NewMockRepository(ctrl)
	rawTransactions := rawtransaction.NewMockRepository(ctrl)
	cursors := cursor.NewMockRepository(ctrl)
	jobs := ingestionjob.NewMockRepository(ctrl)

	jobID := uuid.New()

	connections.EXPECT().FindAny(gomock.Any(), connectionID).Return(conn, nil)
	jobs.EXPECT().Open(gomock.Any(), tenantID, connectionID, "sync").Return(&model.IngestionJob{
		ID:           jobID,
		TenantID:     tenantID,
		ConnectionID: connectionID,
		Status:       model.JobInProgress,
		StartedAt:    time.Now(),
	}, nil)
	jobs.EXPECT().Close(gomock.Any(), gomock.Any()).Return(nil)
	connections.EXPECT().RecordSyncOutcome(gomock.Any(), connectionID, gomock.Any()).Return(nil)

	// A near-zero (but nonzero) rate avoids limiterFor's fallback to the 5
	// req/s default reserved for unconfigured providers, while still making
	// the post-burst refill delay far longer than any wait budget.
	limiters := provider.NewRateLimiters(map[string]float64{testProviderID: 0.0001}, 1)
	// Drain the single burst token so the engine's own Acquire call has
	// nothing left and must wait longer than its 2s budget.
	require.NoError(t, limiters.Acquire(context.Background(), testProviderID, 0))

	deps := Deps{
		Connections:      connections,
		Accounts:         accounts,
		ProviderAccounts: providerAccounts,
		Transactions:     transactions,
		RawTransactions:  rawTransactions,
		Cursors:          cursors,
		Jobs:             jobs,
		Registry:         registry,
		RateLimiters:     limiters,
		Logger:           &mlog.NoneLogger{},
	}

	result, err := New(deps).Run(context.Background(), connectionID)

	require.Error(t, err)
	_, isRateLimited := err.(apperr.RateLimited)
	assert.True(t, isRateLimited)
	assert.True(t, result.Skipped)
	assert.Equal(t, model.JobCompleted, result.Job.Status)
}

func TestRun_LastSyncWithinScheduleInterval_ThrottlesWithoutOpeningJob(t *testing.T) {
	ctrl := gomock.NewController(t)

	connectionID := uuid.New()
	tenantID := uuid.New()
	lastSync := time.Now().UTC().Add(-10 * time.Minute)

	conn := &model.Connection{
		ID:              connectionID,
		TenantID:        tenantID,
		ProviderID:      testProviderID,
		Status:          model.ConnectionStatusActive,
		IntegrationType: model.IntegrationOAuthRedirect,
		SyncSchedule:    model.ScheduleHourly,
		LastSyncAt:      &lastSync,
	}

	connections := connection.NewMockRepository(ctrl)
	connections.EXPECT().FindAny(gomock.Any(), connectionID).Return(conn, nil)
	// No Jobs.Open, Connections.RecordSyncOutcome or provider call: a
	// throttled run never touches any of them (§4.4.3 scenario E).

	deps := Deps{
		Connections: connections,
		Logger:      &mlog.NoneLogger{},
	}

	result, err := New(deps).Run(context.Background(), connectionID)
	require.NoError(t, err)
	assert.True(t, result.Throttled)
}

func TestThrottled_LastSyncOlderThanInterval_IsFalse(t *testing.T) {
	old := time.Now().UTC().Add(-2 * time.Hour)
	conn := &model.Connection{SyncSchedule: model.ScheduleHourly, LastSyncAt: &old}

	assert.False(t, throttled(conn, time.Now().UTC()))
}

func TestThrottled_NeverSynced_IsFalse(t *testing.T) {
	conn := &model.Connection{SyncSchedule: model.ScheduleHourly}

	assert.False(t, throttled(conn, time.Now().UTC()))
}

func TestNextSyncAt_FailureBackoffCappedAtScheduleIntervalTimesEight(t *testing.T) {
	now := time.Now().UTC()
	conn := &model.Connection{SyncSchedule: model.ScheduleHourly, ConsecutiveFailures: 20}

	next := nextSyncAt(conn, false, now)

	assert.True(t, next.Sub(now) <= 8*time.Hour)
	// A high failure count should drive the backoff toward its cap rather
	// than sit at the bare schedule interval (1h), proving the cap actually
	// engages instead of being dwarfed by a fixed ceiling.
	assert.True(t, next.Sub(now) > time.Hour)
}

func TestNextSyncAt_WeeklySchedule_BackoffCapScalesWithInterval(t *testing.T) {
	now := time.Now().UTC()
	conn := &model.Connection{SyncSchedule: model.ScheduleWeekly, ConsecutiveFailures: 20}

	next := nextSyncAt(conn, false, now)

	assert.True(t, next.Sub(now) <= 56*24*time.Hour)
	assert.True(t, next.Sub(now) > 7*24*time.Hour)
}

func TestNextSyncAt_Success_UsesBareScheduleInterval(t *testing.T) {
	now := time.Now().UTC()
	conn := &model.Connection{SyncSchedule: model.ScheduleDaily, ConsecutiveFailures: 5}

	next := nextSyncAt(conn, true, now)
	assert.Equal(t, now.Add(24*time.Hour), next)
}
