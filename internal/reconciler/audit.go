package reconciler

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Drift compares an account's stored balance with the balance implied by its
// transactions.
type Drift struct {
	AccountID        string          `json:"accountId"`
	AccountName      string          `json:"accountName"`
	Recorded         decimal.Decimal `json:"recorded"`
	Expected         decimal.Decimal `json:"expected"`
	Difference       decimal.Decimal `json:"difference"`
	TransactionCount int             `json:"transactionCount"`
	Repaired         bool            `json:"repaired"`
}

// InSync reports whether the stored balance matches the ledger.
func (d Drift) InSync() bool {
	return d.Difference.IsZero()
}

// Auditor detects and repairs balances left inconsistent by an interrupted
// multi-record write.
type Auditor struct {
	store  ledger.Store
	locker ledger.Locker
	log    zerolog.Logger
}

// NewAuditor creates an Auditor.
func NewAuditor(store ledger.Store, locker ledger.Locker, log zerolog.Logger) *Auditor {
	return &Auditor{store: store, locker: locker, log: log}
}

// AuditAccount reports drift for one account.
func (a *Auditor) AuditAccount(ctx context.Context, accountID string) (Drift, error) {
	return a.check(ctx, accountID, false)
}

// Audit reports drift for every account owned by ownerID.
func (a *Auditor) Audit(ctx context.Context, ownerID string) ([]Drift, error) {
	return a.each(ctx, ownerID, false)
}

// Repair resets every drifted balance owned by ownerID to its expected value.
func (a *Auditor) Repair(ctx context.Context, ownerID string) ([]Drift, error) {
	return a.each(ctx, ownerID, true)
}

func (a *Auditor) each(ctx context.Context, ownerID string, repair bool) ([]Drift, error) {
	accounts, err := a.store.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, domain.Persistence("Audit: list accounts", err)
	}

	drifts := make([]Drift, 0, len(accounts))
	for _, acc := range accounts {
		d, err := a.check(ctx, acc.ID, repair)
		if err != nil {
			return drifts, err
		}
		drifts = append(drifts, d)
	}
	return drifts, nil
}

func (a *Auditor) check(ctx context.Context, accountID string, repair bool) (Drift, error) {
	unlock, err := a.locker.Lock(ctx, accountID)
	if err != nil {
		return Drift{}, fmt.Errorf("Audit: lock account %s: %w", accountID, err)
	}
	defer unlock()

	acc, err := a.store.GetAccount(ctx, accountID)
	if err != nil {
		return Drift{}, domain.Persistence("Audit: load account", err)
	}

	txs, err := a.store.ListTransactions(ctx, domain.TransactionFilter{OwnerID: acc.OwnerID, AccountID: acc.ID})
	if err != nil {
		return Drift{}, domain.Persistence("Audit: list transactions", err)
	}

	expected := ExpectedBalance(acc, txs)
	d := Drift{
		AccountID:        acc.ID,
		AccountName:      acc.Name,
		Recorded:         acc.CurrentBalance,
		Expected:         expected,
		Difference:       acc.CurrentBalance.Sub(expected),
		TransactionCount: len(txs),
	}

	if d.InSync() || !repair {
		return d, nil
	}

	a.log.Warn().
		Str("account_id", acc.ID).
		Str("recorded", d.Recorded.String()).
		Str("expected", d.Expected.String()).
		Msg("Repairing account balance")

	acc.CurrentBalance = expected
	if err := a.store.SaveAccount(ctx, acc); err != nil {
		return d, domain.Persistence("Audit: save account", err)
	}
	d.Repaired = true
	return d, nil
}
