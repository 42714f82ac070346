// Package reconciler keeps account balances consistent with the ledger.
package reconciler

import (
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Effect returns the signed balance impact of a transaction.
// Transfers have none: a transfer is recorded as separate Income and
// Expense entries on the two accounts.
func Effect(t domain.TransactionType, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case domain.TransactionTypeIncome:
		return amount
	case domain.TransactionTypeExpense:
		return amount.Neg()
	default:
		return decimal.Zero
	}
}

// ApplyEffect adds the transaction's effect to the account's current balance.
func ApplyEffect(acc *domain.Account, t domain.TransactionType, amount decimal.Decimal) {
	acc.CurrentBalance = acc.CurrentBalance.Add(Effect(t, amount))
}

// RevertEffect undoes ApplyEffect for the same type and amount.
func RevertEffect(acc *domain.Account, t domain.TransactionType, amount decimal.Decimal) {
	acc.CurrentBalance = acc.CurrentBalance.Sub(Effect(t, amount))
}

// ExpectedBalance is the initial balance plus the effect of every listed
// transaction attributed to acc.
func ExpectedBalance(acc *domain.Account, txs []*domain.Transaction) decimal.Decimal {
	total := acc.InitialBalance
	for _, tx := range txs {
		if tx.AccountID != acc.ID {
			continue
		}
		total = total.Add(Effect(tx.Type, tx.Amount))
	}
	return total
}
