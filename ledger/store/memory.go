// Package store provides an in-memory ledger.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ncoin/reward-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	accounts map[ledger.Nickname]ledger.Account
	entries  map[ledger.Nickname][]ledger.Entry
	events   map[eventKey]bool
	rights   map[rightKey]ledger.Right
}

type eventKey struct {
	Nickname ledger.Nickname
	EventID  string
}

type rightKey struct {
	Nickname  ledger.Nickname
	ContentID string
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[ledger.Nickname]ledger.Account),
		entries:  make(map[ledger.Nickname][]ledger.Entry),
		events:   make(map[eventKey]bool),
		rights:   make(map[rightKey]ledger.Right),
	}
}

func (m *Memory) CreateAccount(_ context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAccountLocked(a)
}

func (m *Memory) createAccountLocked(a ledger.Account) error {
	if _, ok := m.accounts[a.Nickname]; ok {
		return ledger.ErrAccountExists
	}
	m.accounts[a.Nickname] = a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, nickname ledger.Nickname) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(nickname)
}

func (m *Memory) getAccountLocked(nickname ledger.Nickname) (*ledger.Account, error) {
	a, ok := m.accounts[nickname]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAccountsLocked()
}

func (m *Memory) listAccountsLocked() ([]ledger.Account, error) {
	accounts := make([]ledger.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Nickname < accounts[j].Nickname
	})
	return accounts, nil
}

func (m *Memory) DeleteAccount(_ context.Context, nickname ledger.Nickname) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteAccountLocked(nickname)
}

func (m *Memory) deleteAccountLocked(nickname ledger.Nickname) error {
	if _, ok := m.accounts[nickname]; !ok {
		return ledger.ErrAccountNotFound
	}
	delete(m.accounts, nickname)
	delete(m.entries, nickname)
	for k := range m.events {
		if k.Nickname == nickname {
			delete(m.events, k)
		}
	}
	for k := range m.rights {
		if k.Nickname == nickname {
			delete(m.rights, k)
		}
	}
	return nil
}

func (m *Memory) AddBalance(_ context.Context, nickname ledger.Nickname, delta ledger.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addBalanceLocked(nickname, delta)
}

func (m *Memory) addBalanceLocked(nickname ledger.Nickname, delta ledger.Amount) error {
	a, ok := m.accounts[nickname]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(delta)
	m.accounts[nickname] = a
	return nil
}

func (m *Memory) AppendEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntryLocked(e)
}

func (m *Memory) appendEntryLocked(e ledger.Entry) error {
	if e.EventID != "" {
		k := eventKey{Nickname: e.Nickname, EventID: e.EventID}
		if m.events[k] {
			return ledger.ErrDuplicateEvent
		}
		m.events[k] = true
	}
	m.entries[e.Nickname] = append(m.entries[e.Nickname], e)
	return nil
}

func (m *Memory) Entries(_ context.Context, nickname ledger.Nickname) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(nickname)
}

func (m *Memory) entriesLocked(nickname ledger.Nickname) ([]ledger.Entry, error) {
	result := make([]ledger.Entry, len(m.entries[nickname]))
	copy(result, m.entries[nickname])
	return result, nil
}

func (m *Memory) HasEvent(_ context.Context, nickname ledger.Nickname, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events[eventKey{Nickname: nickname, EventID: eventID}], nil
}

func (m *Memory) ClearedEvents(_ context.Context, nickname ledger.Nickname, eventIDs []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clearedEventsLocked(nickname, eventIDs)
}

func (m *Memory) clearedEventsLocked(nickname ledger.Nickname, eventIDs []string) (map[string]bool, error) {
	cleared := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		if m.events[eventKey{Nickname: nickname, EventID: id}] {
			cleared[id] = true
		}
	}
	return cleared, nil
}

func (m *Memory) GrantRight(_ context.Context, r ledger.Right) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grantRightLocked(r)
}

func (m *Memory) grantRightLocked(r ledger.Right) (bool, error) {
	k := rightKey{Nickname: r.Nickname, ContentID: r.ContentID}
	if _, ok := m.rights[k]; ok {
		return false, nil
	}
	m.rights[k] = r
	return true, nil
}

func (m *Memory) Rights(_ context.Context, nickname ledger.Nickname) ([]ledger.Right, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rightsLocked(nickname)
}

func (m *Memory) rightsLocked(nickname ledger.Nickname) ([]ledger.Right, error) {
	var rights []ledger.Right
	for k, r := range m.rights {
		if k.Nickname == nickname {
			rights = append(rights, r)
		}
	}
	sort.Slice(rights, func(i, j int) bool {
		return rights[i].ContentID < rights[j].ContentID
	})
	return rights, nil
}

func (m *Memory) Ranking(_ context.Context) ([]ledger.RankEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rankingLocked()
}

func (m *Memory) rankingLocked() ([]ledger.RankEntry, error) {
	var ranks []ledger.RankEntry
	for _, a := range m.accounts {
		if a.IsAdmin() {
			continue
		}
		ranks = append(ranks, ledger.RankEntry{Nickname: a.Nickname, Balance: a.Balance})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if !ranks[i].Balance.Equal(ranks[j].Balance) {
			return ranks[j].Balance.LessThan(ranks[i].Balance)
		}
		return ranks[i].Nickname < ranks[j].Nickname
	})
	return ranks, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on
// error. The store mutex is held for the duration, so units of work are
// serialized the same way the single-writer SQLite store serializes them.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts map[ledger.Nickname]ledger.Account
	entries  map[ledger.Nickname][]ledger.Entry
	events   map[eventKey]bool
	rights   map[rightKey]ledger.Right
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		accounts: make(map[ledger.Nickname]ledger.Account, len(tm.accounts)),
		entries:  make(map[ledger.Nickname][]ledger.Entry, len(tm.entries)),
		events:   make(map[eventKey]bool, len(tm.events)),
		rights:   make(map[rightKey]ledger.Right, len(tm.rights)),
	}
	for k, v := range tm.accounts {
		s.accounts[k] = v
	}
	for k, v := range tm.entries {
		s.entries[k] = append([]ledger.Entry{}, v...)
	}
	for k, v := range tm.events {
		s.events[k] = v
	}
	for k, v := range tm.rights {
		s.rights[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.accounts = s.accounts
	tm.entries = s.entries
	tm.events = s.events
	tm.rights = s.rights
}

// txMemoryView routes store calls to the locked parent, bypassing the
// parent's own mutex (WithTx already holds it).
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) CreateAccount(_ context.Context, a ledger.Account) error {
	return tv.parent.createAccountLocked(a)
}

func (tv *txMemoryView) GetAccount(_ context.Context, nickname ledger.Nickname) (*ledger.Account, error) {
	return tv.parent.getAccountLocked(nickname)
}

func (tv *txMemoryView) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	return tv.parent.listAccountsLocked()
}

func (tv *txMemoryView) DeleteAccount(_ context.Context, nickname ledger.Nickname) error {
	return tv.parent.deleteAccountLocked(nickname)
}

func (tv *txMemoryView) AddBalance(_ context.Context, nickname ledger.Nickname, delta ledger.Amount) error {
	return tv.parent.addBalanceLocked(nickname, delta)
}

func (tv *txMemoryView) AppendEntry(_ context.Context, e ledger.Entry) error {
	return tv.parent.appendEntryLocked(e)
}

func (tv *txMemoryView) Entries(_ context.Context, nickname ledger.Nickname) ([]ledger.Entry, error) {
	return tv.parent.entriesLocked(nickname)
}

func (tv *txMemoryView) HasEvent(_ context.Context, nickname ledger.Nickname, eventID string) (bool, error) {
	return tv.parent.events[eventKey{Nickname: nickname, EventID: eventID}], nil
}

func (tv *txMemoryView) ClearedEvents(_ context.Context, nickname ledger.Nickname, eventIDs []string) (map[string]bool, error) {
	return tv.parent.clearedEventsLocked(nickname, eventIDs)
}

func (tv *txMemoryView) GrantRight(_ context.Context, r ledger.Right) (bool, error) {
	return tv.parent.grantRightLocked(r)
}

func (tv *txMemoryView) Rights(_ context.Context, nickname ledger.Nickname) ([]ledger.Right, error) {
	return tv.parent.rightsLocked(nickname)
}

func (tv *txMemoryView) Ranking(_ context.Context) ([]ledger.RankEntry, error) {
	return tv.parent.rankingLocked()
}
