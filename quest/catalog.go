/*
Package quest implements the quiz/quest reward domain on top of the
ledger core: the event catalog, the pure unlock evaluator, and the
reward and transfer engines.

The catalog is static configuration, not derived data: it partitions
the completable content ids into a normal tier, a second (EX) tier,
and a singleton grand-bonus id.
*/
package quest

import "github.com/ncoin/reward-engine/ledger"

// Catalog is the static partition of content ids driving the unlock
// cascade, plus the coin grants tied to account lifecycle events.
type Catalog struct {
	// NormalTier lists the ids that must all be cleared before the
	// second tier opens.
	NormalTier []string

	// SecondTier lists the ids unlocked as a block once the normal
	// tier is complete.
	SecondTier []string

	// BonusID is the event id of the one-time grand bonus entry.
	BonusID string

	// BonusAmount is credited once when the second tier is fully cleared.
	BonusAmount ledger.Amount

	// MemberGrant and AdminGrant are the signup balances.
	MemberGrant ledger.Amount
	AdminGrant  ledger.Amount
}

// DefaultCatalog returns the event-day configuration: five normal
// quizzes, seven EX quizzes, and a 400 coin all-EX bonus.
func DefaultCatalog() Catalog {
	return Catalog{
		NormalTier:  []string{"quiz01", "quiz02", "quiz03", "quiz04", "quiz05"},
		SecondTier:  []string{"ex01", "ex02", "ex03", "ex04", "ex05", "ex06", "ex07"},
		BonusID:     "bonus_ex_all",
		BonusAmount: ledger.NewAmount(400),
		MemberGrant: ledger.NewAmount(100),
		AdminGrant:  ledger.NewAmount(10000),
	}
}

func (c Catalog) InNormalTier(id string) bool { return containsID(c.NormalTier, id) }
func (c Catalog) InSecondTier(id string) bool { return containsID(c.SecondTier, id) }

// TrackedIDs returns every catalog id that can appear as a history
// event, bonus included.
func (c Catalog) TrackedIDs() []string {
	ids := make([]string, 0, len(c.NormalTier)+len(c.SecondTier)+1)
	ids = append(ids, c.NormalTier...)
	ids = append(ids, c.SecondTier...)
	ids = append(ids, c.BonusID)
	return ids
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
