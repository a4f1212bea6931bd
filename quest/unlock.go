/*
unlock.go - Pure unlock evaluation

PURPOSE:
  Computes unlock state as a pure function of the catalog and one
  account's history snapshot. No storage access, no side effects: the
  engine decides what to persist from the returned Evaluation.

CASCADE RULES:
  - Clearing every normal-tier id opens the whole second tier at once
    (all-or-nothing, not incremental).
  - Clearing every second-tier id earns the grand bonus exactly once.

IDEMPOTENCY:
  Evaluate is re-runnable: ids already granted are excluded from
  SecondTierGrants, and a recorded bonus entry clears BonusEligible.
  Running it twice over the same history produces nothing new.
*/
package quest

// Evaluation is the unlock state derived from a history snapshot.
type Evaluation struct {
	// NormalComplete is true when every normal-tier id is cleared.
	NormalComplete bool

	// SecondTierGrants lists the second-tier ids that should be granted
	// now. Empty unless NormalComplete; never contains ids already held.
	SecondTierGrants []string

	// BonusEligible is true when every second-tier id is cleared and
	// the grand bonus has not been recorded yet.
	BonusEligible bool
}

// Evaluate derives the unlock state for one account.
//
// cleared holds the event ids present in the account's history, granted
// holds the content ids the account already has rights to (explicit and
// derived unioned), and bonusRecorded reports whether the grand-bonus
// history entry exists.
func Evaluate(c Catalog, cleared map[string]bool, granted map[string]bool, bonusRecorded bool) Evaluation {
	var ev Evaluation

	ev.NormalComplete = true
	for _, id := range c.NormalTier {
		if !cleared[id] {
			ev.NormalComplete = false
			break
		}
	}

	if ev.NormalComplete {
		for _, id := range c.SecondTier {
			if !granted[id] {
				ev.SecondTierGrants = append(ev.SecondTierGrants, id)
			}
		}
	}

	if !bonusRecorded {
		allSecond := true
		for _, id := range c.SecondTier {
			if !cleared[id] {
				allSecond = false
				break
			}
		}
		ev.BonusEligible = allSecond
	}

	return ev
}
