package quest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncoin/reward-engine/ledger"
)

// =============================================================================
// TRANSFER TESTS
// =============================================================================

func TestTransfer_MemberToMember_MovesCoins(t *testing.T) {
	// GIVEN: alice and bob, 100 coins each
	// WHEN: alice sends 30 to bob
	// THEN: alice has 70, bob has 130, total unchanged

	e := newTestEngine(t)
	mustRegister(t, e, "alice", ledger.RoleMember)
	mustRegister(t, e, "bob", ledger.RoleMember)
	ctx := context.Background()

	res, err := e.Transfer(ctx, "alice", "bob", ledger.NewAmount(30))
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(70), res.FromBalance)

	bobBalance, err := e.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(130), bobBalance)
}

func TestTransfer_RecordsEntriesOnBothSides(t *testing.T) {
	// GIVEN: A completed transfer
	// THEN: Sender has a negative entry, receiver a positive one, both
	//       naming the counterparty

	e := newTestEngine(t)
	mustRegister(t, e, "alice", ledger.RoleMember)
	mustRegister(t, e, "bob", ledger.RoleMember)
	ctx := context.Background()

	_, err := e.Transfer(ctx, "alice", "bob", ledger.NewAmount(30))
	require.NoError(t, err)

	aliceEntries, err := e.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceEntries, 2) // signup + transfer out
	out := aliceEntries[1]
	assert.Equal(t, ledger.CategoryTransferOut, out.Category)
	assert.Equal(t, ledger.NewAmount(-30), out.Amount)
	assert.Equal(t, ledger.Nickname("bob"), out.Counterparty)

	bobEntries, err := e.History(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobEntries, 2)
	in := bobEntries[1]
	assert.Equal(t, ledger.CategoryTransferIn, in.Category)
	assert.Equal(t, ledger.NewAmount(30), in.Amount)
	assert.Equal(t, ledger.Nickname("alice"), in.Counterparty)
}

func TestTransfer_InsufficientFunds_RejectedAndUnchanged(t *testing.T) {
	// GIVEN: alice with 100 coins
	// WHEN: alice tries to send 500
	// THEN: Typed error carrying both figures; no balance moves

	e := newTestEngine(t)
	mustRegister(t, e, "alice", ledger.RoleMember)
	mustRegister(t, e, "bob", ledger.RoleMember)
	ctx := context.Background()

	_, err := e.Transfer(ctx, "alice", "bob", ledger.NewAmount(500))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	var insufficient *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, ledger.NewAmount(100), insufficient.Available)
	assert.Equal(t, ledger.NewAmount(500), insufficient.Requested)

	aliceBalance, err := e.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(100), aliceBalance)
	bobBalance, err := e.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(100), bobBalance)
}

func TestTransfer_AdminSender_MintsWithoutDebit(t *testing.T) {
	// GIVEN: An admin with 10000 and a member with 100
	// WHEN: The admin sends 5000
	// THEN: The member is credited, the admin balance does not move

	e := newTestEngine(t)
	mustRegister(t, e, "operator", ledger.RoleAdmin)
	mustRegister(t, e, "alice", ledger.RoleMember)
	ctx := context.Background()

	res, err := e.Transfer(ctx, "operator", "alice", ledger.NewAmount(5000))
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(10000), res.FromBalance)

	adminBalance, err := e.Balance(ctx, "operator")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(10000), adminBalance)

	aliceBalance, err := e.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(5100), aliceBalance)
}

func TestTransfer_AdminSender_NoFundsCheck(t *testing.T) {
	// GIVEN: An admin
	// WHEN: Sending more than the admin holds
	// THEN: The transfer succeeds; admin grants mint coins

	e := newTestEngine(t)
	mustRegister(t, e, "operator", ledger.RoleAdmin)
	mustRegister(t, e, "alice", ledger.RoleMember)

	_, err := e.Transfer(context.Background(), "operator", "alice", ledger.NewAmount(50000))
	require.NoError(t, err)

	aliceBalance, err := e.Balance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewAmount(50100), aliceBalance)
}

func TestTransfer_SelfTransfer_Rejected(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", ledger.RoleMember)

	_, err := e.Transfer(context.Background(), "alice", "alice", ledger.NewAmount(10))
	assert.ErrorIs(t, err, ledger.ErrSelfTransfer)
}

func TestTransfer_NonPositiveAmount_Rejected(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", ledger.RoleMember)
	mustRegister(t, e, "bob", ledger.RoleMember)

	_, err := e.Transfer(context.Background(), "alice", "bob", ledger.NewAmount(0))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = e.Transfer(context.Background(), "alice", "bob", ledger.NewAmount(-7))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestTransfer_UnknownParty_NotFound(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", ledger.RoleMember)

	_, err := e.Transfer(context.Background(), "alice", "ghost", ledger.NewAmount(10))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = e.Transfer(context.Background(), "ghost", "alice", ledger.NewAmount(10))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestTransfer_MemberConservation(t *testing.T) {
	// GIVEN: Several member-to-member transfers
	// THEN: The member total never changes

	e := newTestEngine(t)
	mustRegister(t, e, "alice", ledger.RoleMember)
	mustRegister(t, e, "bob", ledger.RoleMember)
	mustRegister(t, e, "carol", ledger.RoleMember)
	ctx := context.Background()

	moves := []struct {
		from, to string
		amount   int64
	}{
		{"alice", "bob", 40},
		{"bob", "carol", 90},
		{"carol", "alice", 15},
	}
	for _, m := range moves {
		_, err := e.Transfer(ctx, ledger.Nickname(m.from), ledger.Nickname(m.to), ledger.NewAmount(m.amount))
		require.NoError(t, err)
	}

	total := ledger.NewAmount(0)
	for _, nickname := range []string{"alice", "bob", "carol"} {
		balance, err := e.Balance(ctx, ledger.Nickname(nickname))
		require.NoError(t, err)
		total = total.Add(balance)
	}
	assert.Equal(t, ledger.NewAmount(300), total)
}
