/*
engine.go - Reward engine and unlock state

PURPOSE:
  Applies quest rewards as single atomic units of work: idempotency
  check, balance credit, history append, unlock cascade, and bonus
  grant either all commit together or none do.

CONCURRENCY:
  Every write runs inside TxStore.WithTx. The idempotency decision is
  enforced by the store's (nickname, event id) uniqueness constraint,
  not by a check-then-act in application code; the pre-check in
  ApplyReward is an optimization, with ErrDuplicateEvent from the
  append as the authoritative backstop. The unlock cascade is evaluated
  inside the same unit of work as the triggering reward, so two rewards
  racing to complete the same tier cannot both grant the bonus.

RETRIES:
  The engine never retries silently. On ErrConflict the unit of work
  has been fully rolled back and the caller may retry; idempotency
  makes the retry safe.
*/
package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ncoin/reward-engine/ledger"
)

// Notifier receives a fire-and-forget "ledger changed" signal after a
// successful write. It carries no data; subscribers re-poll.
type Notifier interface {
	Publish()
}

// MetricsRecorder counts engine activity. Implementations must be safe
// for concurrent use.
type MetricsRecorder interface {
	RewardApplied()
	BonusGranted()
	TransferApplied()
}

// defaultOpTimeout bounds every storage unit of work so no request can
// block indefinitely on a wedged store.
const defaultOpTimeout = 5 * time.Second

// Engine coordinates rewards, transfers, and unlock state over one
// shared ledger store.
type Engine struct {
	Store   ledger.TxStore
	Catalog Catalog

	// Notifier and Metrics are optional; nil disables them.
	Notifier Notifier
	Metrics  MetricsRecorder

	// Now is the clock, overridable in tests.
	Now func() time.Time

	// OpTimeout bounds each storage unit of work.
	OpTimeout time.Duration

	// RankingTTL is the staleness window for cached rankings.
	RankingTTL time.Duration

	ranks rankCache
}

// NewEngine returns an engine with default clock, timeout, and ranking
// staleness window.
func NewEngine(store ledger.TxStore, catalog Catalog) *Engine {
	return &Engine{
		Store:      store,
		Catalog:    catalog,
		Now:        time.Now,
		OpTimeout:  defaultOpTimeout,
		RankingTTL: 3 * time.Second,
	}
}

func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// changed fans out the ledger-changed signal and drops the ranking cache.
func (e *Engine) changed() {
	e.ranks.invalidate()
	if e.Notifier != nil {
		e.Notifier.Publish()
	}
}

func newEntryID() ledger.EntryID {
	return ledger.EntryID(uuid.NewString())
}

// =============================================================================
// REWARD
// =============================================================================

// RewardResult is the outcome of one ApplyReward call.
type RewardResult struct {
	// Balance is the account balance after the call, bonus included.
	Balance ledger.Amount

	// Applied is false when the event id was already recorded; the call
	// succeeds but changes nothing ("already cleared").
	Applied bool

	// TierUnlocked is true on exactly the call that completed the
	// normal tier.
	TierUnlocked bool

	// BonusGranted is true on exactly the call that completed the
	// second tier.
	BonusGranted bool
}

// ApplyReward credits amount to the account and records the event,
// exactly once per (nickname, event id). eventID may be empty for
// rewards that are not tied to a completable item.
func (e *Engine) ApplyReward(ctx context.Context, nickname ledger.Nickname, eventID string, amount ledger.Amount, category string) (RewardResult, error) {
	if !amount.IsPositive() || !amount.IsWholeCoins() {
		return RewardResult{}, fmt.Errorf("reward of %s: %w", amount, ledger.ErrInvalidAmount)
	}
	if category == "" {
		category = ledger.CategoryQuestReward
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var res RewardResult
	err := e.Store.WithTx(ctx, func(s ledger.Store) error {
		acct, err := s.GetAccount(ctx, nickname)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledger.ErrAccountNotFound
		}

		if eventID != "" {
			cleared, err := s.HasEvent(ctx, nickname, eventID)
			if err != nil {
				return err
			}
			if cleared {
				res = RewardResult{Balance: acct.Balance}
				return nil
			}
		}

		err = s.AppendEntry(ctx, ledger.Entry{
			ID:        newEntryID(),
			Nickname:  nickname,
			EventID:   eventID,
			Amount:    amount,
			Category:  category,
			CreatedAt: e.now(),
		})
		if errors.Is(err, ledger.ErrDuplicateEvent) {
			// Lost the insert race; the event is recorded, nothing to do.
			res = RewardResult{Balance: acct.Balance}
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.AddBalance(ctx, nickname, amount); err != nil {
			return err
		}
		res = RewardResult{Balance: acct.Balance.Add(amount), Applied: true}

		// Clearing an item also secures the right to it, so replays of a
		// scan-to-claim cannot take it away.
		if eventID != "" {
			if _, err := s.GrantRight(ctx, ledger.Right{
				Nickname:  nickname,
				ContentID: eventID,
				Origin:    ledger.OriginDerived,
				GrantedAt: e.now(),
			}); err != nil {
				return err
			}
		}

		return e.cascade(ctx, s, nickname, eventID, &res)
	})
	if err != nil {
		return RewardResult{}, err
	}

	if res.Applied {
		e.changed()
		if e.Metrics != nil {
			e.Metrics.RewardApplied()
			if res.BonusGranted {
				e.Metrics.BonusGranted()
			}
		}
	}
	return res, nil
}

// cascade re-derives unlock state inside the reward's unit of work and
// persists any newly crossed threshold.
func (e *Engine) cascade(ctx context.Context, s ledger.Store, nickname ledger.Nickname, eventID string, res *RewardResult) error {
	cleared, err := s.ClearedEvents(ctx, nickname, e.Catalog.TrackedIDs())
	if err != nil {
		return err
	}
	rights, err := s.Rights(ctx, nickname)
	if err != nil {
		return err
	}
	granted := make(map[string]bool, len(rights))
	for _, r := range rights {
		granted[r.ContentID] = true
	}

	ev := Evaluate(e.Catalog, cleared, granted, cleared[e.Catalog.BonusID])

	for _, id := range ev.SecondTierGrants {
		if _, err := s.GrantRight(ctx, ledger.Right{
			Nickname:  nickname,
			ContentID: id,
			Origin:    ledger.OriginDerived,
			GrantedAt: e.now(),
		}); err != nil {
			return err
		}
	}
	res.TierUnlocked = ev.NormalComplete && e.Catalog.InNormalTier(eventID)

	if ev.BonusEligible && e.Catalog.InSecondTier(eventID) {
		err := s.AppendEntry(ctx, ledger.Entry{
			ID:        newEntryID(),
			Nickname:  nickname,
			EventID:   e.Catalog.BonusID,
			Amount:    e.Catalog.BonusAmount,
			Category:  ledger.CategoryTierBonus,
			CreatedAt: e.now(),
		})
		if errors.Is(err, ledger.ErrDuplicateEvent) {
			// Constraint backstop: another unit of work got there first.
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.AddBalance(ctx, nickname, e.Catalog.BonusAmount); err != nil {
			return err
		}
		res.Balance = res.Balance.Add(e.Catalog.BonusAmount)
		res.BonusGranted = true
	}
	return nil
}

// =============================================================================
// UNLOCK STATE
// =============================================================================

// UnlockState returns the content ids the account may access: explicit
// grants unioned with derived grants. Derived second-tier grants are
// recomputed from history on the way, so the result is monotone even if
// a cascade was missed (idempotent upserts, never revocations).
func (e *Engine) UnlockState(ctx context.Context, nickname ledger.Nickname) ([]string, error) {
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var ids []string
	err := e.Store.WithTx(ctx, func(s ledger.Store) error {
		acct, err := s.GetAccount(ctx, nickname)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledger.ErrAccountNotFound
		}

		cleared, err := s.ClearedEvents(ctx, nickname, e.Catalog.TrackedIDs())
		if err != nil {
			return err
		}
		rights, err := s.Rights(ctx, nickname)
		if err != nil {
			return err
		}
		granted := make(map[string]bool, len(rights))
		for _, r := range rights {
			granted[r.ContentID] = true
		}

		ev := Evaluate(e.Catalog, cleared, granted, cleared[e.Catalog.BonusID])
		for _, id := range ev.SecondTierGrants {
			if _, err := s.GrantRight(ctx, ledger.Right{
				Nickname:  nickname,
				ContentID: id,
				Origin:    ledger.OriginDerived,
				GrantedAt: e.now(),
			}); err != nil {
				return err
			}
		}

		rights, err = s.Rights(ctx, nickname)
		if err != nil {
			return err
		}
		ids = make([]string, 0, len(rights))
		for _, r := range rights {
			ids = append(ids, r.ContentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Claim records an explicit scan-to-claim grant for one content id.
// Returns true if the account already held the right.
func (e *Engine) Claim(ctx context.Context, nickname ledger.Nickname, contentID string) (bool, error) {
	if contentID == "" {
		return false, fmt.Errorf("empty content id: %w", ledger.ErrInvalidContent)
	}

	ctx, cancel := e.opContext(ctx)
	defer cancel()

	var already bool
	err := e.Store.WithTx(ctx, func(s ledger.Store) error {
		acct, err := s.GetAccount(ctx, nickname)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledger.ErrAccountNotFound
		}
		inserted, err := s.GrantRight(ctx, ledger.Right{
			Nickname:  nickname,
			ContentID: contentID,
			Origin:    ledger.OriginExplicit,
			GrantedAt: e.now(),
		})
		if err != nil {
			return err
		}
		already = !inserted
		return nil
	})
	if err != nil {
		return false, err
	}
	if !already {
		e.changed()
	}
	return already, nil
}
