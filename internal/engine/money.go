package engine

import (
	"github.com/shopspring/decimal"

	"github.com/banktrail/ingestor/pkg/model"
)

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}

	return d, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// transactionType is redundant with amount's sign but kept explicit per
// model.Transaction's documented convention.
func transactionType(amount decimal.Decimal) model.TransactionType {
	if amount.IsNegative() {
		return model.TransactionDebit
	}

	return model.TransactionCredit
}
