/*
transfer.go - Atomic balance moves between accounts

LOCK ORDER:
  Both accounts are loaded inside the unit of work in lexicographic
  nickname order, so two concurrent opposite-direction transfers cannot
  deadlock regardless of store implementation.

ADMIN MINT:
  An admin sender bypasses the funds check and is not debited; the
  transfer mints new supply. The admin-side entry is recorded with a
  zero amount so the balance-equals-sum-of-entries invariant holds
  while the audit trail keeps both sides of the move.
*/
package quest

import (
	"context"
	"fmt"

	"github.com/ncoin/reward-engine/ledger"
)

// TransferResult is the outcome of one Transfer call.
type TransferResult struct {
	// FromBalance is the sender's balance after the call. Unchanged for
	// admin senders.
	FromBalance ledger.Amount
}

// Transfer moves amount from one account to another atomically.
func (e *Engine) Transfer(ctx context.Context, from, to ledger.Nickname, amount ledger.Amount) (TransferResult, error) {
	if !amount.IsPositive() || !amount.IsWholeCoins() {
		return TransferResult{}, fmt.Errorf("transfer of %s: %w", amount, ledger.ErrInvalidAmount)
	}
	if from == to {
		return TransferResult{}, ledger.ErrSelfTransfer
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var res TransferResult
	err := e.Store.WithTx(ctx, func(s ledger.Store) error {
		// Fixed global lock order: lexicographic by nickname.
		first, second := from, to
		if second < first {
			first, second = second, first
		}
		accounts := make(map[ledger.Nickname]*ledger.Account, 2)
		for _, name := range []ledger.Nickname{first, second} {
			acct, err := s.GetAccount(ctx, name)
			if err != nil {
				return err
			}
			if acct == nil {
				return fmt.Errorf("%s: %w", name, ledger.ErrAccountNotFound)
			}
			accounts[name] = acct
		}
		sender := accounts[from]

		debit := amount
		if sender.IsAdmin() {
			debit = ledger.NewAmount(0)
		} else if sender.Balance.LessThan(amount) {
			return &ledger.InsufficientFundsError{
				Nickname:  from,
				Available: sender.Balance,
				Requested: amount,
			}
		}

		now := e.now()
		if !debit.IsZero() {
			if err := s.AddBalance(ctx, from, debit.Neg()); err != nil {
				return err
			}
		}
		if err := s.AddBalance(ctx, to, amount); err != nil {
			return err
		}

		if err := s.AppendEntry(ctx, ledger.Entry{
			ID:           newEntryID(),
			Nickname:     from,
			Amount:       debit.Neg(),
			Category:     ledger.CategoryTransferOut,
			Counterparty: to,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, ledger.Entry{
			ID:           newEntryID(),
			Nickname:     to,
			Amount:       amount,
			Category:     ledger.CategoryTransferIn,
			Counterparty: from,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		res = TransferResult{FromBalance: sender.Balance.Sub(debit)}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	e.changed()
	if e.Metrics != nil {
		e.Metrics.TransferApplied()
	}
	return res, nil
}
