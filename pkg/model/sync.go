package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncMetrics summarizes the most recent page applied for a connection.
type SyncMetrics struct {
	Added    int  `json:"added"`
	Modified int  `json:"modified"`
	Removed  int  `json:"removed"`
	HasMore  bool `json:"has_more"`
}

// ProviderSyncCursor is the single per-connection incremental-pull pointer
// (§4.4.2). Cursor is nil before the first successful sync. It is updated
// only after every page of a run has been fetched AND staged — never
// mid-run — so a crash never leaves it ahead of staged data (§8 property 4).
type ProviderSyncCursor struct {
	ConnectionID  uuid.UUID   `json:"connection_id"`
	Cursor        *string     `json:"cursor,omitempty"`
	LastSyncAt    *time.Time  `json:"last_sync_at,omitempty"`
	LastPageCount int         `json:"last_page_count"`
	Metrics       SyncMetrics `json:"metrics"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// SyncAction classifies a staged raw transaction.
type SyncAction string

const (
	SyncActionAdded    SyncAction = "added"
	SyncActionModified SyncAction = "modified"
	SyncActionRemoved  SyncAction = "removed"
)

// ProviderRawTransaction is the staging row written before any canonical
// upsert. Uniqueness on (connection, external_id, last_updated_at) makes
// replaying the same page a no-op (§8 property 5).
type ProviderRawTransaction struct {
	ID                    uuid.UUID  `json:"id"`
	TenantID              uuid.UUID  `json:"tenant_id"`
	ConnectionID          uuid.UUID  `json:"connection_id"`
	ExternalTransactionID string     `json:"external_transaction_id"`
	SyncAction            SyncAction `json:"sync_action"`
	RawData               []byte     `json:"-"`
	LastUpdatedAt         time.Time  `json:"last_updated_at"`
	ImportedToCanonical   bool       `json:"imported_to_canonical"`
	CreatedAt             time.Time  `json:"created_at"`
}

// TransactionPage is what an adapter's syncTransactions returns per call
// (§4.2): provider-agnostic incremental pull, cursor-based or synthetic.
type TransactionPage struct {
	Added      []RawTransaction
	Modified   []RawTransaction
	Removed    []RawTransaction
	NextCursor string
	HasMore    bool
}

// RawTransaction is a provider's wire shape for one transaction before
// canonicalization; Raw holds whatever the adapter couldn't map to a typed
// field so it can be preserved in Transaction.Metadata.
type RawTransaction struct {
	ExternalAccountID     string
	ExternalTransactionID string
	Amount                string // decimal string; sign indicates credit/debit
	Currency              string
	Date                  time.Time
	ValueDate             *time.Time
	Description           string
	MerchantName          string
	CounterpartyName      string
	CounterpartyIBAN      string
	Reference             string
	BookingStatus         string
	Raw                   map[string]any
}
