package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncoin/reward-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testAccount(nickname string) ledger.Account {
	return ledger.Account{
		Nickname:  ledger.Nickname(nickname),
		Balance:   ledger.NewAmount(0),
		Role:      ledger.RoleMember,
		CreatedAt: time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testEntry(nickname, eventID string, amount int64) ledger.Entry {
	return ledger.Entry{
		ID:        ledger.EntryID("entry-" + nickname + "-" + eventID),
		Nickname:  ledger.Nickname(nickname),
		EventID:   eventID,
		Amount:    ledger.NewAmount(amount),
		Category:  ledger.CategoryQuestReward,
		CreatedAt: time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// ACCOUNT TESTS
// =============================================================================

func TestStore_CreateAndGetAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))

	got, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.Nickname("alice"), got.Nickname)
	assert.Equal(t, ledger.RoleMember, got.Role)
	assert.Equal(t, ledger.NewAmount(0), got.Balance)
}

func TestStore_GetAccount_Absent_ReturnsNilNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetAccount(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_CreateAccount_Duplicate_Rejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))
	err := s.CreateAccount(ctx, testAccount("alice"))
	assert.ErrorIs(t, err, ledger.ErrAccountExists)
}

func TestStore_AddBalance_AppliesSignedDeltas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))
	require.NoError(t, s.AddBalance(ctx, "alice", ledger.NewAmount(100)))
	require.NoError(t, s.AddBalance(ctx, "alice", ledger.NewAmount(-30)))

	got, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(70), got.Balance)
}

func TestStore_AddBalance_UnknownAccount_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.AddBalance(context.Background(), "ghost", ledger.NewAmount(10))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// =============================================================================
// ENTRY TESTS (idempotency contract)
// =============================================================================

func TestStore_AppendEntry_DuplicateEvent_Rejected(t *testing.T) {
	// GIVEN: An entry recorded for (alice, quiz01)
	// WHEN: A second entry with the same pair is appended
	// THEN: The unique index rejects it with ErrDuplicateEvent

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))

	require.NoError(t, s.AppendEntry(ctx, testEntry("alice", "quiz01", 30)))

	dup := testEntry("alice", "quiz01", 30)
	dup.ID = "entry-other-id"
	err := s.AppendEntry(ctx, dup)
	assert.ErrorIs(t, err, ledger.ErrDuplicateEvent)
}

func TestStore_AppendEntry_SameEventDifferentAccounts_Allowed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))
	require.NoError(t, s.CreateAccount(ctx, testAccount("bob")))

	require.NoError(t, s.AppendEntry(ctx, testEntry("alice", "quiz01", 30)))
	require.NoError(t, s.AppendEntry(ctx, testEntry("bob", "quiz01", 30)))
}

func TestStore_AppendEntry_EmptyEventID_NeverCollides(t *testing.T) {
	// Transfers and distributions carry no event id; the partial index
	// must not treat them as duplicates of each other.

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))

	first := testEntry("alice", "", 10)
	first.ID = "entry-1"
	second := testEntry("alice", "", 20)
	second.ID = "entry-2"

	require.NoError(t, s.AppendEntry(ctx, first))
	require.NoError(t, s.AppendEntry(ctx, second))
}

func TestStore_Entries_InsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))

	for i, eventID := range []string{"quiz01", "quiz02", "quiz03"} {
		e := testEntry("alice", eventID, int64(10*(i+1)))
		e.CreatedAt = e.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.AppendEntry(ctx, e))
	}

	entries, err := s.Entries(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "quiz01", entries[0].EventID)
	assert.Equal(t, "quiz03", entries[2].EventID)
}

func TestStore_HasEventAndClearedEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))
	require.NoError(t, s.AppendEntry(ctx, testEntry("alice", "quiz01", 30)))

	has, err := s.HasEvent(ctx, "alice", "quiz01")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasEvent(ctx, "alice", "quiz02")
	require.NoError(t, err)
	assert.False(t, has)

	cleared, err := s.ClearedEvents(ctx, "alice", []string{"quiz01", "quiz02", "quiz03"})
	require.NoError(t, err)
	assert.True(t, cleared["quiz01"])
	assert.False(t, cleared["quiz02"])
}

// =============================================================================
// RIGHTS TESTS
// =============================================================================

func TestStore_GrantRight_IdempotentUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))

	right := ledger.Right{
		Nickname:  "alice",
		ContentID: "ex01",
		Origin:    ledger.OriginDerived,
		GrantedAt: time.Now(),
	}

	inserted, err := s.GrantRight(ctx, right)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.GrantRight(ctx, right)
	require.NoError(t, err)
	assert.False(t, inserted)

	rights, err := s.Rights(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rights, 1)
}

// =============================================================================
// DELETE CASCADE
// =============================================================================

func TestStore_DeleteAccount_CascadesEntriesAndRights(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))
	require.NoError(t, s.AppendEntry(ctx, testEntry("alice", "quiz01", 30)))
	_, err := s.GrantRight(ctx, ledger.Right{
		Nickname: "alice", ContentID: "ex01",
		Origin: ledger.OriginDerived, GrantedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAccount(ctx, "alice"))

	got, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	entries, err := s.Entries(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, entries)

	rights, err := s.Rights(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rights)
}

func TestStore_DeleteAccount_Unknown_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// =============================================================================
// RANKING
// =============================================================================

func TestStore_Ranking_ExcludesAdmins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin := testAccount("operator")
	admin.Role = ledger.RoleAdmin
	require.NoError(t, s.CreateAccount(ctx, admin))
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))
	require.NoError(t, s.CreateAccount(ctx, testAccount("bob")))

	require.NoError(t, s.AddBalance(ctx, "operator", ledger.NewAmount(10000)))
	require.NoError(t, s.AddBalance(ctx, "alice", ledger.NewAmount(100)))
	require.NoError(t, s.AddBalance(ctx, "bob", ledger.NewAmount(250)))

	ranks, err := s.Ranking(ctx)
	require.NoError(t, err)
	require.Len(t, ranks, 2)
	assert.Equal(t, ledger.Nickname("bob"), ranks[0].Nickname)
	assert.Equal(t, ledger.Nickname("alice"), ranks[1].Nickname)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A unit of work that writes and then fails
	// THEN: Nothing it wrote survives

	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AddBalance(ctx, "alice", ledger.NewAmount(100)); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, testEntry("alice", "quiz01", 100)); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	got, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(0), got.Balance)

	has, err := s.HasEvent(ctx, "alice", "quiz01")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStore_WithTx_CommitsOnNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendEntry(ctx, testEntry("alice", "quiz01", 30)); err != nil {
			return err
		}
		return tx.AddBalance(ctx, "alice", ledger.NewAmount(30))
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(30), got.Balance)
}

func TestStore_WithTx_DuplicateInsideTx_Surfaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAccount(ctx, testAccount("alice")))
	require.NoError(t, s.AppendEntry(ctx, testEntry("alice", "quiz01", 30)))

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		dup := testEntry("alice", "quiz01", 30)
		dup.ID = "entry-dup"
		return tx.AppendEntry(ctx, dup)
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateEvent)
}
