// Package account is the canonical Account repository, grounded on the
// teacher's internal/adapters/postgres/account package.
package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/banktrail/ingestor/pkg/model"
)

// PostgreSQLModel is the row shape account maps to/from.
type PostgreSQLModel struct {
	ID                uuid.UUID
	AccountID         string
	TenantID          uuid.UUID
	EntityID          *string
	AccountName       string
	AccountType       string
	Currency          string
	BalanceCurrent    decimal.Decimal
	BalanceAvailable  decimal.Decimal
	BalanceLedger     decimal.Decimal
	IBAN              *string
	BIC               *string
	BankName          *string
	AccountStatus     string
	ConnectionID      *uuid.UUID
	ProviderID        *string
	ExternalAccountID *string
	CreatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r *PostgreSQLModel) FromEntity(a *model.Account) {
	r.ID = a.ID
	r.AccountID = a.AccountID
	r.TenantID = a.TenantID
	r.EntityID = a.EntityID
	r.AccountName = a.AccountName
	r.AccountType = a.AccountType
	r.Currency = a.Currency
	r.BalanceCurrent = a.Balances.Current
	r.BalanceAvailable = a.Balances.Available
	r.BalanceLedger = a.Balances.Ledger
	r.IBAN = a.IBAN
	r.BIC = a.BIC
	r.BankName = a.BankName
	r.AccountStatus = string(a.AccountStatus)
	r.ConnectionID = a.ConnectionID
	r.ProviderID = a.ProviderID
	r.ExternalAccountID = a.ExternalAccountID
	r.CreatedBy = a.CreatedBy
	r.CreatedAt = a.CreatedAt
	r.UpdatedAt = a.UpdatedAt
}

func (r *PostgreSQLModel) ToEntity() *model.Account {
	return &model.Account{
		ID:          r.ID,
		AccountID:   r.AccountID,
		TenantID:    r.TenantID,
		EntityID:    r.EntityID,
		AccountName: r.AccountName,
		AccountType: r.AccountType,
		Currency:    r.Currency,
		Balances: model.Balances{
			Current:   r.BalanceCurrent,
			Available: r.BalanceAvailable,
			Ledger:    r.BalanceLedger,
		},
		IBAN:              r.IBAN,
		BIC:               r.BIC,
		BankName:          r.BankName,
		AccountStatus:     model.AccountStatus(r.AccountStatus),
		ConnectionID:      r.ConnectionID,
		ProviderID:        r.ProviderID,
		ExternalAccountID: r.ExternalAccountID,
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
