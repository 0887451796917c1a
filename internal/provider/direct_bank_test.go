package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/pkg/model"
)

func TestDirectBankAdapter_FetchRawAccounts_ParsesAccountsAndFingerprint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts", r.URL.Path)
		assert.Equal(t, "sub-key-1", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "cust-1", r.Header.Get("X-Customer-Id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"bank_id": "inst-1",
			"bank_name": "Test Bank",
			"accounts": [
				{"account_number": "1234567890123000", "iban": "SE1234567890123000", "type": "checking", "currency": "SEK", "balance": "100.50", "closed": false}
			]
		}`))
	}))
	defer srv.Close()

	adapter := NewDirectBankAdapter("testbank", "Test Bank", srv.URL)
	credentials := Credentials{Direct: map[string]string{"subscription_key": "sub-key-1", "customer_id": "cust-1"}}

	accounts, fp, err := adapter.FetchRawAccounts(context.Background(), credentials)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "1234567890123000", accounts[0].ExternalAccountID)
	assert.Equal(t, "active", accounts[0].Status)
	assert.Equal(t, "3000", accounts[0].AccountNumberLast4)
	assert.Equal(t, "inst-1", fp.InstitutionID)
	assert.Equal(t, "Test Bank", fp.DisplayName)
	require.Len(t, fp.ExternalAccounts, 1)
}

func TestDirectBankAdapter_FetchRawAccounts_ClosedAccountMapsToClosedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts": [{"account_number": "1", "closed": true}]}`))
	}))
	defer srv.Close()

	adapter := NewDirectBankAdapter("testbank", "Test Bank", srv.URL)
	accounts, _, err := adapter.FetchRawAccounts(context.Background(), Credentials{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "closed", accounts[0].Status)
}

func TestDirectBankAdapter_FetchRawAccounts_UnauthorizedMapsToAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := NewDirectBankAdapter("testbank", "Test Bank", srv.URL)
	_, _, err := adapter.FetchRawAccounts(context.Background(), Credentials{})
	require.Error(t, err)

	_, ok := err.(apperr.AuthFailure)
	assert.True(t, ok)
}

func TestDirectBankAdapter_FetchRawAccounts_ServerErrorMapsToTransientProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := NewDirectBankAdapter("testbank", "Test Bank", srv.URL)
	_, _, err := adapter.FetchRawAccounts(context.Background(), Credentials{})
	require.Error(t, err)

	_, ok := err.(apperr.TransientProviderError)
	assert.True(t, ok)
}

func TestDirectBankAdapter_FetchRawAccounts_RateLimitedMapsToRateLimitedWithRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	adapter := NewDirectBankAdapter("testbank", "Test Bank", srv.URL)
	_, _, err := adapter.FetchRawAccounts(context.Background(), Credentials{})
	require.Error(t, err)

	limited, ok := err.(apperr.RateLimited)
	require.True(t, ok)
	assert.Equal(t, 30, limited.RetryAfter)
}

func TestDirectBankAdapter_SyncTransactions_FiltersAlreadySeenAndAdvancesCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/ext-acc-1/transactions", r.URL.Path)
		w.Write([]byte(`{
			"transactions": [
				{"id": "tx-old", "booking_date": "2026-01-01", "amount": "-10.00", "currency": "SEK"},
				{"id": "tx-new", "booking_date": "2026-01-05", "amount": "-20.00", "currency": "SEK", "text": "Groceries"}
			]
		}`))
	}))
	defer srv.Close()

	adapter := NewDirectBankAdapter("testbank", "Test Bank", srv.URL)
	cursor := EncodeSyntheticCursor(SyntheticCursor{LastExternalID: "tx-old"})

	page, err := adapter.SyncTransactions(context.Background(), Credentials{}, cursor, "ext-acc-1")
	require.NoError(t, err)
	require.Len(t, page.Added, 1)
	assert.Equal(t, "tx-new", page.Added[0].ExternalTransactionID)
	assert.False(t, page.HasMore)

	next := DecodeSyntheticCursor(page.NextCursor)
	assert.Equal(t, "tx-new", next.LastExternalID)
}

func TestDirectBankAdapter_SyncTransactions_NextPageSetsHasMore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactions": [], "next_page": "page-2"}`))
	}))
	defer srv.Close()

	adapter := NewDirectBankAdapter("testbank", "Test Bank", srv.URL)
	page, err := adapter.SyncTransactions(context.Background(), Credentials{}, "", "ext-acc-1")
	require.NoError(t, err)
	assert.True(t, page.HasMore)
}

func TestDirectBankAdapter_UnsupportedOAuthOperations_ReturnPermanentProviderError(t *testing.T) {
	adapter := NewDirectBankAdapter("testbank", "Test Bank", "http://example.invalid")

	_, err := adapter.GetAuthorizationURL(context.Background(), "state", "redirect")
	require.Error(t, err)
	_, ok := err.(apperr.PermanentProviderError)
	assert.True(t, ok)

	_, err = adapter.CreateLinkToken(context.Background(), "user-ref")
	require.Error(t, err)
	_, ok = err.(apperr.PermanentProviderError)
	assert.True(t, ok)

	_, err = adapter.ExchangeCodeForToken(context.Background(), "code")
	require.Error(t, err)

	_, err = adapter.RefreshAccessToken(context.Background(), "refresh")
	require.Error(t, err)

	_, err = adapter.FetchUserInfo(context.Background(), model.Tokens{})
	require.Error(t, err)
}

func TestDirectBankAdapter_Describe_ReflectsRequiredCredentialFields(t *testing.T) {
	adapter := NewDirectBankAdapter("testbank", "Test Bank", "http://example.invalid")
	desc := adapter.Describe()

	assert.Equal(t, model.IntegrationDirectCredentials, desc.IntegrationType)
	assert.Contains(t, desc.RequiredCredentialFields, "subscription_key")
	assert.Contains(t, desc.RequiredCredentialFields, "customer_id")
}
