package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the credit/debit sign classification, redundant with
// amount's sign but kept explicit for provider payloads that carry it
// independently.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// BookingStatus mirrors a provider's pending-vs-settled distinction.
type BookingStatus string

const (
	BookingBooked  BookingStatus = "booked"
	BookingPending BookingStatus = "pending"
)

// Transaction is the canonical, deduplicated ledger line. When
// ExternalTransactionID is non-nil, uniqueness is enforced on
// (tenant, connection, external_id); otherwise no uniqueness is enforced.
// Removed transactions are soft-deleted (Removed=true), never purged, so the
// audit trail required by §8 property 8 survives reconnection re-parenting.
type Transaction struct {
	TransactionID         uuid.UUID        `json:"transaction_id"`
	TenantID              uuid.UUID        `json:"tenant_id"`
	AccountID             uuid.UUID        `json:"account_id"`
	Date                  time.Time        `json:"date"`
	ValueDate             *time.Time       `json:"value_date,omitempty"`
	Amount                decimal.Decimal  `json:"amount"`
	Currency              string           `json:"currency"`
	Type                  TransactionType  `json:"type"`
	Description           string           `json:"description"`
	Category              *string          `json:"category,omitempty"`
	MerchantName          *string          `json:"merchant_name,omitempty"`
	CounterpartyName      *string          `json:"counterparty_name,omitempty"`
	CounterpartyIBAN      *string          `json:"counterparty_iban,omitempty"`
	Reference             *string          `json:"reference,omitempty"`
	BookingStatus         BookingStatus    `json:"booking_status"`
	TransactionTypeCode   *string          `json:"transaction_type_code,omitempty"`
	ConnectionID          *uuid.UUID       `json:"connection_id,omitempty"`
	ExternalTransactionID *string          `json:"external_transaction_id,omitempty"`
	ImportJobID           *uuid.UUID       `json:"import_job_id,omitempty"`
	Metadata              map[string]any   `json:"metadata,omitempty"`
	Removed               bool             `json:"removed"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// UpsertTransactionFields is the payload upsertTransactionByExternalId
// writes in a single atomic operation keyed on (tenant, connection,
// external_id) (§4.1).
type UpsertTransactionFields struct {
	AccountID             uuid.UUID
	Date                  time.Time
	ValueDate             *time.Time
	Amount                decimal.Decimal
	Currency              string
	Type                  TransactionType
	Description            string
	Category              *string
	MerchantName          *string
	CounterpartyName      *string
	CounterpartyIBAN      *string
	Reference             *string
	BookingStatus         BookingStatus
	TransactionTypeCode   *string
	ImportJobID           uuid.UUID
	Metadata              map[string]any
	Removed               bool
}
