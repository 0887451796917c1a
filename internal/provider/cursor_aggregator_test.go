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

func TestCursorAggregatorAdapter_CreateLinkToken_PostsClientCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/link/token/create", r.URL.Path)
		w.Write([]byte(`{"link_token": "link-abc"}`))
	}))
	defer srv.Close()

	adapter := NewCursorAggregatorAdapter("testbank", "Test Bank", srv.URL, "client-1", "secret-1")
	token, err := adapter.CreateLinkToken(context.Background(), "user-ref-1")
	require.NoError(t, err)
	assert.Equal(t, "link-abc", token)
}

func TestCursorAggregatorAdapter_ExchangeCodeForToken_ReturnsAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/public_token/exchange", r.URL.Path)
		w.Write([]byte(`{"access_token": "at-1", "item_id": "item-1"}`))
	}))
	defer srv.Close()

	adapter := NewCursorAggregatorAdapter("testbank", "Test Bank", srv.URL, "client-1", "secret-1")
	tokens, err := adapter.ExchangeCodeForToken(context.Background(), "public-token-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "bearer", tokens.TokenType)
}

func TestCursorAggregatorAdapter_UnsupportedOperations_ReturnPermanentProviderError(t *testing.T) {
	adapter := NewCursorAggregatorAdapter("testbank", "Test Bank", "http://example.invalid", "client-1", "secret-1")

	_, err := adapter.GetAuthorizationURL(context.Background(), "state", "redirect")
	require.Error(t, err)
	_, ok := err.(apperr.PermanentProviderError)
	assert.True(t, ok)

	_, err = adapter.RefreshAccessToken(context.Background(), "refresh-token")
	require.Error(t, err)
	_, ok = err.(apperr.PermanentProviderError)
	assert.True(t, ok)
}

func TestCursorAggregatorAdapter_FetchRawAccounts_MapsMaskAndBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/get", r.URL.Path)
		w.Write([]byte(`{
			"accounts": [{"account_id": "acc-1", "name": "Checking", "type": "depository", "mask": "4242", "balances": {"current": 1234.56, "available": 1200.00, "iso_currency_code": "USD"}}],
			"item": {"institution_id": "inst-1", "institution_name": "Test Bank"}
		}`))
	}))
	defer srv.Close()

	adapter := NewCursorAggregatorAdapter("testbank", "Test Bank", srv.URL, "client-1", "secret-1")
	accounts, fp, err := adapter.FetchRawAccounts(context.Background(), Credentials{Tokens: model.Tokens{AccessToken: "at-1"}})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "4242", accounts[0].AccountNumberLast4)
	assert.Equal(t, "1234.56", accounts[0].Balance)
	assert.Equal(t, "active", accounts[0].Status)
	assert.Equal(t, "inst-1", fp.InstitutionID)
}

func TestCursorAggregatorAdapter_SyncTransactions_FlipsSignAndIgnoresExternalAccountID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/sync", r.URL.Path)
		w.Write([]byte(`{
			"added": [{"account_id": "acc-1", "transaction_id": "tx-1", "amount": 42.50, "iso_currency_code": "USD", "date": "2026-01-15", "name": "Coffee Shop", "pending": false}],
			"modified": [],
			"removed": [{"account_id": "acc-1", "transaction_id": "tx-0", "amount": 1.00, "date": "2026-01-01"}],
			"next_cursor": "cursor-2",
			"has_more": true
		}`))
	}))
	defer srv.Close()

	adapter := NewCursorAggregatorAdapter("testbank", "Test Bank", srv.URL, "client-1", "secret-1")
	page, err := adapter.SyncTransactions(context.Background(), Credentials{Tokens: model.Tokens{AccessToken: "at-1"}}, "cursor-1", "acc-9")
	require.NoError(t, err)

	require.Len(t, page.Added, 1)
	assert.Equal(t, "-42.5", page.Added[0].Amount)
	assert.Equal(t, string(model.BookingBooked), page.Added[0].BookingStatus)

	require.Len(t, page.Removed, 1)
	assert.Equal(t, "tx-0", page.Removed[0].ExternalTransactionID)

	assert.Equal(t, "cursor-2", page.NextCursor)
	assert.True(t, page.HasMore)
}

func TestCursorAggregatorAdapter_SyncTransactions_PendingFlagSetsBookingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"added": [{"account_id": "acc-1", "transaction_id": "tx-2", "amount": 10, "date": "2026-01-16", "pending": true}]}`))
	}))
	defer srv.Close()

	adapter := NewCursorAggregatorAdapter("testbank", "Test Bank", srv.URL, "client-1", "secret-1")
	page, err := adapter.SyncTransactions(context.Background(), Credentials{}, "", "")
	require.NoError(t, err)
	require.Len(t, page.Added, 1)
	assert.Equal(t, string(model.BookingPending), page.Added[0].BookingStatus)
}
