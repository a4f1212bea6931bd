/*
store.go - Persistence interfaces for accounts, entries, and rights

PURPOSE:
  Defines the interface between the quest engines and the database.
  Different implementations can use SQLite or in-memory storage; both
  must uphold the same invariants.

APPEND-ONLY CONTRACT:
  Entries are append-only. There is no UpdateEntry and no DeleteEntry;
  the only way entries disappear is the cascading DeleteAccount, which
  is an administrative operation outside the engines.

IDEMPOTENCY:
  AppendEntry must enforce, at the storage level, that at most one
  entry exists per (nickname, event id) when the event id is non-empty.
  A violation is reported as ledger.ErrDuplicateEvent. The check is a
  uniqueness constraint, not a read-then-write: two concurrent appends
  of the same event must not both succeed.

ATOMIC UNITS:
  TxStore.WithTx runs a function against a transactional view of the
  store. If the function errors, nothing it wrote survives.

IMPLEMENTATIONS:
  - store/sqlite: production embedded store
  - ledger/store:  in-memory store for tests
*/
package ledger

import "context"

// Store persists accounts, the entry log, and unlock rights.
type Store interface {
	// CreateAccount inserts a new account. Returns ErrAccountExists if
	// the nickname is taken.
	CreateAccount(ctx context.Context, a Account) error

	// GetAccount returns the account, or (nil, nil) if absent.
	GetAccount(ctx context.Context, nickname Nickname) (*Account, error)

	// ListAccounts returns all accounts ordered by nickname.
	ListAccounts(ctx context.Context) ([]Account, error)

	// DeleteAccount removes an account, cascading its entries and
	// rights. Administrative use only.
	DeleteAccount(ctx context.Context, nickname Nickname) error

	// AddBalance applies a signed delta to the stored balance.
	AddBalance(ctx context.Context, nickname Nickname, delta Amount) error

	// AppendEntry persists one entry. Returns ErrDuplicateEvent if the
	// (nickname, event id) pair already exists. This is the ONLY write
	// to the history log.
	AppendEntry(ctx context.Context, e Entry) error

	// Entries returns all entries for an account in insertion order.
	Entries(ctx context.Context, nickname Nickname) ([]Entry, error)

	// HasEvent reports whether an entry with this event id exists for
	// the account.
	HasEvent(ctx context.Context, nickname Nickname, eventID string) (bool, error)

	// ClearedEvents reports which of the given event ids have entries
	// for the account.
	ClearedEvents(ctx context.Context, nickname Nickname, eventIDs []string) (map[string]bool, error)

	// GrantRight records an unlock right. Idempotent: returns true if
	// the right was newly inserted, false if it already existed.
	GrantRight(ctx context.Context, r Right) (bool, error)

	// Rights returns all rights for an account.
	Rights(ctx context.Context, nickname Nickname) ([]Right, error)

	// Ranking returns non-admin accounts ordered by balance descending.
	Ranking(ctx context.Context) ([]RankEntry, error)
}

// TxStore wraps Store with transaction support. Every multi-write
// operation in the engines runs through WithTx.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
