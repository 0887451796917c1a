package reconnect

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/banktrail/ingestor/internal/adapters/postgres/account"
	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/cursor"
	"github.com/banktrail/ingestor/internal/adapters/postgres/historyevent"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/pkg/model"
)

func strPtr(s string) *string { return &s }

// fakeAdapter is a minimal provider.Adapter stand-in; seedResumeCursor only
// needs its Describe() result, so every other method is unused here.
type fakeAdapter struct {
	descriptor model.CapabilityDescriptor
}

func (a *fakeAdapter) Describe() model.CapabilityDescriptor { return a.descriptor }

func (a *fakeAdapter) GetAuthorizationURL(ctx context.Context, state, redirectURI string) (string, error) {
	return "", nil
}

func (a *fakeAdapter) CreateLinkToken(ctx context.Context, userRef string) (string, error) {
	return "", nil
}

func (a *fakeAdapter) ExchangeCodeForToken(ctx context.Context, code string) (model.Tokens, error) {
	return model.Tokens{}, nil
}

func (a *fakeAdapter) RefreshAccessToken(ctx context.Context, refreshToken string) (model.Tokens, error) {
	return model.Tokens{}, nil
}

func (a *fakeAdapter) FetchUserInfo(ctx context.Context, tokens model.Tokens) (provider.ProviderUserInfo, error) {
	return provider.ProviderUserInfo{}, nil
}

func (a *fakeAdapter) FetchRawAccounts(ctx context.Context, credentials provider.Credentials) ([]provider.RawAccount, model.InstitutionFingerprint, error) {
	return nil, model.InstitutionFingerprint{}, nil
}

func (a *fakeAdapter) SyncTransactions(ctx context.Context, credentials provider.Credentials, pageCursor, externalAccountID string) (model.TransactionPage, error) {
	return model.TransactionPage{}, nil
}

func newTestDetector(t *testing.T, ctrl *gomock.Controller) (*Detector, *account.MockRepository, *connection.MockRepository, *transaction.MockRepository, *historyevent.MockRepository, *cursor.MockRepository) {
	t.Helper()

	accounts := account.NewMockRepository(ctrl)
	connections := connection.NewMockRepository(ctrl)
	transactions := transaction.NewMockRepository(ctrl)
	history := historyevent.NewMockRepository(ctrl)
	cursors := cursor.NewMockRepository(ctrl)

	registry := provider.NewRegistry()
	registry.Register(&fakeAdapter{descriptor: model.CapabilityDescriptor{
		ProviderID:                "testbank",
		ConnectionLevelPagination: false,
	}})

	d := New(Deps{
		Accounts:     accounts,
		Connections:  connections,
		Transactions: transactions,
		Cursors:      cursors,
		History:      history,
		Registry:     registry,
		Logger:       &mlog.NoneLogger{},
	})

	return d, accounts, connections, transactions, history, cursors
}

func TestDetect_ExternalIDMatch_IsHighConfidence(t *testing.T) {
	ctrl := gomock.NewController(t)
	d, accounts, _, _, _, _ := newTestDetector(t, ctrl)

	tenantID := uuid.New()
	candidate := &model.Account{
		ID:                uuid.New(),
		ExternalAccountID: strPtr("ext-acc-1"),
	}

	accounts.EXPECT().
		FindCandidatesForReconnection(gomock.Any(), tenantID, "testbank", []string{"ext-acc-1"}, gomock.Any(), gomock.Any()).
		Return([]*model.Account{candidate}, nil)

	fp := model.InstitutionFingerprint{
		InstitutionID: "inst-1",
		ExternalAccounts: []model.ExternalAccountRef{
			{ExternalAccountID: "ext-acc-1"},
		},
	}

	proposal, err := d.Detect(context.Background(), tenantID, "testbank", fp)
	require.NoError(t, err)
	require.NotNil(t, proposal)
	assert.Equal(t, model.ConfidenceHigh, proposal.Confidence)
	require.Len(t, proposal.Matches, 1)
	assert.Equal(t, VariantExternalID, proposal.Matches[0].Variant)
	assert.Equal(t, candidate.ID, proposal.Matches[0].Account.ID)
}

func TestDetect_IBANMatch_IsHighConfidence(t *testing.T) {
	ctrl := gomock.NewController(t)
	d, accounts, _, _, _, _ := newTestDetector(t, ctrl)

	tenantID := uuid.New()
	candidate := &model.Account{
		ID:   uuid.New(),
		IBAN: strPtr("DE89370400440532013000"),
	}

	accounts.EXPECT().
		FindCandidatesForReconnection(gomock.Any(), tenantID, "testbank", gomock.Any(), []string{"DE89370400440532013000"}, gomock.Any()).
		Return([]*model.Account{candidate}, nil)

	fp := model.InstitutionFingerprint{
		ExternalAccounts: []model.ExternalAccountRef{
			{IBAN: "DE89370400440532013000"},
		},
	}

	proposal, err := d.Detect(context.Background(), tenantID, "testbank", fp)
	require.NoError(t, err)
	require.NotNil(t, proposal)
	assert.Equal(t, model.ConfidenceHigh, proposal.Confidence)
	assert.Equal(t, VariantIBAN, proposal.Matches[0].Variant)
}

func TestDetect_NameAndLast4Overlap_IsMediumConfidence(t *testing.T) {
	ctrl := gomock.NewController(t)
	d, accounts, connections, _, _, _ := newTestDetector(t, ctrl)

	tenantID := uuid.New()
	priorConnectionID := uuid.New()

	candidate := &model.Account{
		ID:           uuid.New(),
		IBAN:         strPtr("DE89370400440532013000"),
		ConnectionID: &priorConnectionID,
	}

	accounts.EXPECT().
		FindCandidatesForReconnection(gomock.Any(), tenantID, "testbank", gomock.Any(), gomock.Any(), []string{"3000"}).
		Return([]*model.Account{candidate}, nil)

	connections.EXPECT().FindAny(gomock.Any(), priorConnectionID).Return(&model.Connection{
		ID:          priorConnectionID,
		DisplayName: "My Checking",
	}, nil)

	fp := model.InstitutionFingerprint{
		InstitutionID: "",
		DisplayName:   "My Checking",
		ExternalAccounts: []model.ExternalAccountRef{
			{AccountNumberLast4: "3000"},
		},
	}

	proposal, err := d.Detect(context.Background(), tenantID, "testbank", fp)
	require.NoError(t, err)
	require.NotNil(t, proposal)
	assert.Equal(t, model.ConfidenceMedium, proposal.Confidence)
	assert.Equal(t, VariantName, proposal.Matches[0].Variant)
}

func TestDetect_NoCandidates_ReturnsNilProposal(t *testing.T) {
	ctrl := gomock.NewController(t)
	d, accounts, _, _, _, _ := newTestDetector(t, ctrl)

	tenantID := uuid.New()
	accounts.EXPECT().FindCandidatesForReconnection(gomock.Any(), tenantID, "testbank", gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil)

	proposal, err := d.Detect(context.Background(), tenantID, "testbank", model.InstitutionFingerprint{})
	require.NoError(t, err)
	assert.Nil(t, proposal)
}

func TestApply_HighConfidence_RelinksAndReparentsHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	d, accounts, connections, transactions, history, cursors := newTestDetector(t, ctrl)

	tenantID := uuid.New()
	newConnectionID := uuid.New()
	previousConnectionID := uuid.New()
	accountID := uuid.New()

	acc := &model.Account{
		ID:                accountID,
		ExternalAccountID: strPtr("ext-acc-1"),
		ConnectionID:      &previousConnectionID,
	}

	proposal := &Proposal{
		Confidence: model.ConfidenceHigh,
		Matches:    []Match{{Account: acc, Variant: VariantExternalID}},
	}

	accounts.EXPECT().Relink(gomock.Any(), tenantID, accountID, newConnectionID, "testbank", "ext-acc-1").Return(nil)
	transactions.EXPECT().ReparentConnection(gomock.Any(), []uuid.UUID{accountID}, newConnectionID).Return(nil)

	resumeFrom := time.Now().Add(-24 * time.Hour)
	transactions.EXPECT().MaxDateForAccounts(gomock.Any(), []uuid.UUID{accountID}).Return(&resumeFrom, nil)

	connections.EXPECT().LinkReconnection(gomock.Any(), newConnectionID, previousConnectionID, model.ConfidenceHigh).Return(nil)

	cursors.EXPECT().Persist(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c *model.ProviderSyncCursor) error {
		assert.Equal(t, newConnectionID, c.ConnectionID)
		require.NotNil(t, c.Cursor)
		return nil
	})

	history.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *model.ConnectionHistoryEvent) error {
		assert.Equal(t, model.HistoryReconnection, e.EventType)
		require.NotNil(t, e.PreviousConnectionID)
		assert.Equal(t, previousConnectionID, *e.PreviousConnectionID)
		return nil
	})

	err := d.Apply(context.Background(), tenantID, newConnectionID, "testbank", proposal)
	require.NoError(t, err)
}

func TestApply_MediumConfidence_OnlyAppendsHistoryEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	d, accounts, connections, transactions, history, cursors := newTestDetector(t, ctrl)
	_, _, _, _ = accounts, connections, transactions, cursors

	newConnectionID := uuid.New()
	tenantID := uuid.New()

	acc := &model.Account{ID: uuid.New()}
	proposal := &Proposal{
		Confidence: model.ConfidenceMedium,
		Matches:    []Match{{Account: acc, Variant: VariantName}},
	}

	history.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *model.ConnectionHistoryEvent) error {
		assert.Equal(t, model.HistoryReconnection, e.EventType)
		return nil
	})

	err := d.Apply(context.Background(), tenantID, newConnectionID, "testbank", proposal)
	require.NoError(t, err)
}

func TestApply_NilProposal_IsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	d, _, _, _, _, _ := newTestDetector(t, ctrl)

	err := d.Apply(context.Background(), uuid.New(), uuid.New(), "testbank", nil)
	require.NoError(t, err)
}
