/*
accounts.go - Account lifecycle and read paths

Accounts are created at first login with a signup grant recorded as a
regular ledger entry, so the balance-equals-sum-of-entries invariant
holds from the very first coin. Distribution and deletion are
administrative operations over the same store.
*/
package quest

import (
	"context"
	"fmt"

	"github.com/ncoin/reward-engine/ledger"
)

// signupEventID is the idempotency key of the initial grant, one per
// account lifetime.
const signupEventID = "signup_grant"

// Register creates the account on first login and returns it. An
// existing account is returned unchanged with created=false.
func (e *Engine) Register(ctx context.Context, nickname ledger.Nickname, role ledger.Role) (ledger.Account, bool, error) {
	if !ledger.ValidNickname(string(nickname)) {
		return ledger.Account{}, false, fmt.Errorf("%q: %w", nickname, ledger.ErrInvalidNickname)
	}
	if role == "" {
		role = ledger.RoleMember
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var (
		account ledger.Account
		created bool
	)
	err := e.Store.WithTx(ctx, func(s ledger.Store) error {
		existing, err := s.GetAccount(ctx, nickname)
		if err != nil {
			return err
		}
		if existing != nil {
			account = *existing
			return nil
		}

		grant := e.Catalog.MemberGrant
		if role == ledger.RoleAdmin {
			grant = e.Catalog.AdminGrant
		}
		now := e.now()

		account = ledger.Account{
			Nickname:  nickname,
			Balance:   ledger.NewAmount(0),
			Role:      role,
			CreatedAt: now,
		}
		if err := s.CreateAccount(ctx, account); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, ledger.Entry{
			ID:        newEntryID(),
			Nickname:  nickname,
			EventID:   signupEventID,
			Amount:    grant,
			Category:  ledger.CategorySignupGrant,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := s.AddBalance(ctx, nickname, grant); err != nil {
			return err
		}
		account.Balance = grant
		created = true
		return nil
	})
	if err != nil {
		return ledger.Account{}, false, err
	}

	if created {
		e.changed()
	}
	return account, created, nil
}

// Balance returns the account's current balance.
func (e *Engine) Balance(ctx context.Context, nickname ledger.Nickname) (ledger.Amount, error) {
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	acct, err := e.account(ctx, nickname)
	if err != nil {
		return ledger.Amount{}, err
	}
	return acct.Balance, nil
}

// Exists reports whether an account with this nickname exists.
func (e *Engine) Exists(ctx context.Context, nickname ledger.Nickname) (bool, error) {
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	acct, err := e.Store.GetAccount(ctx, nickname)
	if err != nil {
		return false, err
	}
	return acct != nil, nil
}

// History returns the account's entry log in insertion order.
func (e *Engine) History(ctx context.Context, nickname ledger.Nickname) ([]ledger.Entry, error) {
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	if _, err := e.account(ctx, nickname); err != nil {
		return nil, err
	}
	return e.Store.Entries(ctx, nickname)
}

// Distribute credits amount to every non-admin account in one atomic
// unit of work. Returns the number of accounts credited.
func (e *Engine) Distribute(ctx context.Context, amount ledger.Amount) (int, error) {
	if !amount.IsPositive() || !amount.IsWholeCoins() {
		return 0, fmt.Errorf("distribution of %s: %w", amount, ledger.ErrInvalidAmount)
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var credited int
	err := e.Store.WithTx(ctx, func(s ledger.Store) error {
		accounts, err := s.ListAccounts(ctx)
		if err != nil {
			return err
		}
		now := e.now()
		for _, a := range accounts {
			if a.IsAdmin() {
				continue
			}
			if err := s.AddBalance(ctx, a.Nickname, amount); err != nil {
				return err
			}
			if err := s.AppendEntry(ctx, ledger.Entry{
				ID:        newEntryID(),
				Nickname:  a.Nickname,
				Amount:    amount,
				Category:  ledger.CategoryDistribution,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			credited++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if credited > 0 {
		e.changed()
	}
	return credited, nil
}

// DeleteAccount removes an account with its entries and rights.
// Administrative operation; the engines never call it themselves.
func (e *Engine) DeleteAccount(ctx context.Context, nickname ledger.Nickname) error {
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	err := e.Store.WithTx(ctx, func(s ledger.Store) error {
		acct, err := s.GetAccount(ctx, nickname)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledger.ErrAccountNotFound
		}
		return s.DeleteAccount(ctx, nickname)
	})
	if err != nil {
		return err
	}

	e.changed()
	return nil
}

func (e *Engine) account(ctx context.Context, nickname ledger.Nickname) (*ledger.Account, error) {
	acct, err := e.Store.GetAccount(ctx, nickname)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("%s: %w", nickname, ledger.ErrAccountNotFound)
	}
	return acct, nil
}
