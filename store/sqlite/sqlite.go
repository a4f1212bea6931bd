/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  The embedded production store. In shared multi-instance deployments
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  accounts: nickname-keyed balances with an explicit role column
  entries:  immutable history log of all balance changes
  rights:   unlock grants, keyed by (nickname, content_id)

IDEMPOTENCY ENFORCEMENT:
  The partial unique index idx_entries_event makes (nickname, event_id)
  unique wherever event_id is non-null. Two concurrent appends of the
  same event cannot both commit; the loser gets ErrDuplicateEvent. This
  is the storage-level contract the reward engine relies on - no
  application-level check-then-act is trusted under concurrency.

APPEND-ONLY ENFORCEMENT:
  No UPDATE and no DELETE statements exist for the entries table. The
  only way entries disappear is the ON DELETE CASCADE from the
  administrative account deletion.

CONCURRENCY:
  A sync.RWMutex serializes writers over the single SQLite handle; the
  database is opened in WAL mode so readers do not block. Every unit of
  work from the engines arrives through WithTx and commits or rolls
  back as a whole.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ncoin/reward-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: the mutex serializes writers anyway, and a
	// pool would split ":memory:" databases per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		nickname TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0,
		role TEXT NOT NULL DEFAULT 'member',
		created_at TEXT NOT NULL
	);

	-- Entries (append-only history log)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		nickname TEXT NOT NULL REFERENCES accounts(nickname) ON DELETE CASCADE,
		event_id TEXT,
		amount INTEGER NOT NULL,
		category TEXT NOT NULL,
		counterparty TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: the idempotency contract. At most one entry may exist
	-- per (nickname, event_id) where event_id is present.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_event
		ON entries(nickname, event_id) WHERE event_id IS NOT NULL;

	-- Per-account history listing (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_nickname
		ON entries(nickname, created_at);

	CREATE TABLE IF NOT EXISTS rights (
		nickname TEXT NOT NULL REFERENCES accounts(nickname) ON DELETE CASCADE,
		content_id TEXT NOT NULL,
		origin TEXT NOT NULL,
		granted_at TEXT NOT NULL,
		PRIMARY KEY (nickname, content_id)
	);

	-- Ranking scans non-admin balances
	CREATE INDEX IF NOT EXISTS idx_accounts_role_balance
		ON accounts(role, balance DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAccount(ctx, s.db, a)
}

func createAccount(ctx context.Context, db dbtx, a ledger.Account) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (nickname, balance, role, created_at) VALUES (?, ?, ?, ?)`,
		a.Nickname, a.Balance.Int64(), a.Role, a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if isUniqueConstraintError(err) {
		return ledger.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, nickname ledger.Nickname) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, nickname)
}

func getAccount(ctx context.Context, db dbtx, nickname ledger.Nickname) (*ledger.Account, error) {
	var (
		a         ledger.Account
		balance   int64
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		`SELECT nickname, balance, role, created_at FROM accounts WHERE nickname = ?`,
		nickname,
	).Scan(&a.Nickname, &balance, &a.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	a.Balance = ledger.NewAmount(balance)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db)
}

func listAccounts(ctx context.Context, db dbtx) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT nickname, balance, role, created_at FROM accounts ORDER BY nickname`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var (
			a         ledger.Account
			balance   int64
			createdAt string
		)
		if err := rows.Scan(&a.Nickname, &balance, &a.Role, &createdAt); err != nil {
			return nil, err
		}
		a.Balance = ledger.NewAmount(balance)
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) DeleteAccount(ctx context.Context, nickname ledger.Nickname) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAccount(ctx, s.db, nickname)
}

func deleteAccount(ctx context.Context, db dbtx, nickname ledger.Nickname) error {
	// Entries and rights go with the account via ON DELETE CASCADE.
	res, err := db.ExecContext(ctx, `DELETE FROM accounts WHERE nickname = ?`, nickname)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) AddBalance(ctx context.Context, nickname ledger.Nickname, delta ledger.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addBalance(ctx, s.db, nickname, delta)
}

func addBalance(ctx context.Context, db dbtx, nickname ledger.Nickname, delta ledger.Amount) error {
	res, err := db.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE nickname = ?`,
		delta.Int64(), nickname,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// ENTRIES (append-only)
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, db dbtx, e ledger.Entry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO entries (id, nickname, event_id, amount, category, counterparty, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Nickname,
		nullString(e.EventID),
		e.Amount.Int64(),
		e.Category,
		nullString(string(e.Counterparty)),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if isUniqueConstraintError(err) {
		return ledger.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func (s *Store) Entries(ctx context.Context, nickname ledger.Nickname) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEntries(ctx, s.db, nickname)
}

func queryEntries(ctx context.Context, db dbtx, nickname ledger.Nickname) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, nickname, event_id, amount, category, counterparty, created_at
		 FROM entries
		 WHERE nickname = ?
		 ORDER BY created_at ASC, rowid ASC`,
		nickname,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e            ledger.Entry
			eventID      sql.NullString
			amount       int64
			counterparty sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&e.ID, &e.Nickname, &eventID, &amount, &e.Category, &counterparty, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.EventID = eventID.String
		e.Amount = ledger.NewAmount(amount)
		e.Counterparty = ledger.Nickname(counterparty.String)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) HasEvent(ctx context.Context, nickname ledger.Nickname, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasEvent(ctx, s.db, nickname, eventID)
}

func hasEvent(ctx context.Context, db dbtx, nickname ledger.Nickname, eventID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE nickname = ? AND event_id = ?`,
		nickname, eventID,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) ClearedEvents(ctx context.Context, nickname ledger.Nickname, eventIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clearedEvents(ctx, s.db, nickname, eventIDs)
}

func clearedEvents(ctx context.Context, db dbtx, nickname ledger.Nickname, eventIDs []string) (map[string]bool, error) {
	cleared := make(map[string]bool, len(eventIDs))
	if len(eventIDs) == 0 {
		return cleared, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
	args := make([]any, 0, len(eventIDs)+1)
	args = append(args, nickname)
	for _, id := range eventIDs {
		args = append(args, id)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT event_id FROM entries WHERE nickname = ? AND event_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cleared events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		cleared[id] = true
	}
	return cleared, rows.Err()
}

// =============================================================================
// RIGHTS
// =============================================================================

func (s *Store) GrantRight(ctx context.Context, r ledger.Right) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return grantRight(ctx, s.db, r)
}

func grantRight(ctx context.Context, db dbtx, r ledger.Right) (bool, error) {
	// Idempotent insert; an existing right keeps its original origin.
	res, err := db.ExecContext(ctx,
		`INSERT INTO rights (nickname, content_id, origin, granted_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(nickname, content_id) DO NOTHING`,
		r.Nickname, r.ContentID, r.Origin, r.GrantedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("failed to grant right: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Rights(ctx context.Context, nickname ledger.Nickname) ([]ledger.Right, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryRights(ctx, s.db, nickname)
}

func queryRights(ctx context.Context, db dbtx, nickname ledger.Nickname) ([]ledger.Right, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT nickname, content_id, origin, granted_at
		 FROM rights WHERE nickname = ? ORDER BY content_id`,
		nickname,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rights: %w", err)
	}
	defer rows.Close()

	var rights []ledger.Right
	for rows.Next() {
		var (
			r         ledger.Right
			grantedAt string
		)
		if err := rows.Scan(&r.Nickname, &r.ContentID, &r.Origin, &grantedAt); err != nil {
			return nil, err
		}
		r.GrantedAt, _ = time.Parse(time.RFC3339Nano, grantedAt)
		rights = append(rights, r)
	}
	return rights, rows.Err()
}

// =============================================================================
// RANKING
// =============================================================================

func (s *Store) Ranking(ctx context.Context) ([]ledger.RankEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ranking(ctx, s.db)
}

func ranking(ctx context.Context, db dbtx) ([]ledger.RankEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT nickname, balance FROM accounts
		 WHERE role != 'admin'
		 ORDER BY balance DESC, nickname ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}
	defer rows.Close()

	var ranks []ledger.RankEntry
	for rows.Next() {
		var (
			nickname ledger.Nickname
			balance  int64
		)
		if err := rows.Scan(&nickname, &balance); err != nil {
			return nil, err
		}
		ranks = append(ranks, ledger.RankEntry{Nickname: nickname, Balance: ledger.NewAmount(balance)})
	}
	return ranks, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The store mutex is
// held for the duration, so units of work are single-writer.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	}
	return nil
}

// txStore routes store calls to the open transaction. It never touches
// the parent mutex (WithTx already holds it).
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateAccount(ctx context.Context, a ledger.Account) error {
	return createAccount(ctx, ts.tx, a)
}

func (ts *txStore) GetAccount(ctx context.Context, nickname ledger.Nickname) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, nickname)
}

func (ts *txStore) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return listAccounts(ctx, ts.tx)
}

func (ts *txStore) DeleteAccount(ctx context.Context, nickname ledger.Nickname) error {
	return deleteAccount(ctx, ts.tx, nickname)
}

func (ts *txStore) AddBalance(ctx context.Context, nickname ledger.Nickname, delta ledger.Amount) error {
	return addBalance(ctx, ts.tx, nickname, delta)
}

func (ts *txStore) AppendEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) Entries(ctx context.Context, nickname ledger.Nickname) ([]ledger.Entry, error) {
	return queryEntries(ctx, ts.tx, nickname)
}

func (ts *txStore) HasEvent(ctx context.Context, nickname ledger.Nickname, eventID string) (bool, error) {
	return hasEvent(ctx, ts.tx, nickname, eventID)
}

func (ts *txStore) ClearedEvents(ctx context.Context, nickname ledger.Nickname, eventIDs []string) (map[string]bool, error) {
	return clearedEvents(ctx, ts.tx, nickname, eventIDs)
}

func (ts *txStore) GrantRight(ctx context.Context, r ledger.Right) (bool, error) {
	return grantRight(ctx, ts.tx, r)
}

func (ts *txStore) Rights(ctx context.Context, nickname ledger.Nickname) ([]ledger.Right, error) {
	return queryRights(ctx, ts.tx, nickname)
}

func (ts *txStore) Ranking(ctx context.Context) ([]ledger.RankEntry, error) {
	return ranking(ctx, ts.tx)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
