package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderAccount is the raw, per-provider projection of one account as
// returned by fetchRawAccounts, before canonicalization.
type ProviderAccount struct {
	ID                uuid.UUID      `json:"id"`
	TenantID          uuid.UUID      `json:"tenant_id"`
	ConnectionID      uuid.UUID      `json:"connection_id"`
	ProviderID        string         `json:"provider_id"`
	ExternalAccountID string         `json:"external_account_id"`
	Type              string         `json:"type"`
	Currency          string         `json:"currency"`
	Balance           decimal.Decimal `json:"balance"`
	IBAN              *string        `json:"iban,omitempty"`
	Status            string         `json:"status"`
	ProviderMetadata  map[string]any `json:"provider_metadata,omitempty"`
	LastSyncedAt      time.Time      `json:"last_synced_at"`
	AccountID         *uuid.UUID     `json:"account_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// AccountStatus is the canonical account's lifecycle flag.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusClosed AccountStatus = "closed"
)

// Balances bundles the three balance views a canonical Account tracks.
type Balances struct {
	Current   decimal.Decimal `json:"current"`
	Available decimal.Decimal `json:"available"`
	Ledger    decimal.Decimal `json:"ledger"`
}

// Account is the canonical, tenant-owned account. Manual accounts carry a
// nil ConnectionID; synced accounts point at exactly one ProviderAccount.
type Account struct {
	ID                uuid.UUID     `json:"id"`
	AccountID         string        `json:"account_id"`
	TenantID          uuid.UUID     `json:"tenant_id"`
	EntityID          *string       `json:"entity_id,omitempty"`
	AccountName       string        `json:"account_name"`
	AccountType       string        `json:"account_type"`
	Currency          string        `json:"currency"`
	Balances          Balances      `json:"balances"`
	IBAN              *string       `json:"iban,omitempty"`
	BIC               *string       `json:"bic,omitempty"`
	BankName          *string       `json:"bank_name,omitempty"`
	AccountStatus     AccountStatus `json:"account_status"`
	ConnectionID      *uuid.UUID    `json:"connection_id,omitempty"`
	ProviderID        *string       `json:"provider_id,omitempty"`
	ExternalAccountID *string       `json:"external_account_id,omitempty"`
	CreatedBy         uuid.UUID     `json:"created_by"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	Connection *ConnectionSnapshot `json:"connection,omitempty"`
}

// CreateAccountInput is accepted by the command service's CreateAccount
// operation. Empty entity-reference strings are normalized to nil on write.
type CreateAccountInput struct {
	TenantID    uuid.UUID `validate:"required"`
	AccountID   string    `validate:"required,max=128"`
	AccountName string    `validate:"required,max=256"`
	AccountType string    `validate:"required,max=64"`
	Currency    string    `validate:"required,len=3"`
	EntityID    string
	IBAN        string
	BIC         string
	BankName    string
	CreatedBy   uuid.UUID `validate:"required"`
}

// UpdateAccountInput carries mutable fields only; zero values leave the
// corresponding column untouched (callers pass pointers to signal intent).
type UpdateAccountInput struct {
	AccountName *string
	EntityID    *string
	IBAN        *string
	BIC         *string
	BankName    *string
	Status      *AccountStatus
}

// AccountFilters narrows getAccounts (§4.1).
type AccountFilters struct {
	ConnectionID *uuid.UUID
	Status       *AccountStatus
	Page         int
	Limit        int
}
