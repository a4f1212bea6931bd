/*
Package ledger provides the core reward ledger model.

PURPOSE:
  This package contains the domain-agnostic building blocks of the coin
  ledger: accounts, immutable entries, unlock rights, and the coin
  Amount value type. The quest package builds the reward and transfer
  engines on top of these; the store packages persist them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A coin quantity backed by decimal.Decimal
  - Account: A participant identified by nickname, with a role
  - Entry: An immutable, append-only record of one balance change
  - Right: A monotonic grant of access to a content id

DESIGN PRINCIPLES:
  1. Immutability: Entries are never updated or deleted
  2. Derivability: An account's balance is the sum of its signed entries
  3. Idempotency: (nickname, event id) appears at most once in the log
  4. Monotonicity: Rights, once granted, are never revoked

SEE ALSO:
  - errors.go: Sentinel and structured errors
  - store.go: Persistence interfaces
  - quest/: Reward, transfer, and unlock engines
*/
package ledger

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Coin quantity
// =============================================================================

// Amount is a signed coin quantity. The engines only accept positive
// whole-coin amounts at their boundaries; entries may carry negative
// amounts (debits).
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(coins int64) Amount {
	return Amount{Value: decimal.NewFromInt(coins)}
}

func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d}, nil
}

// MustParseAmount is for constants and stored values that are known to
// be well-formed. Malformed input yields zero.
func MustParseAmount(s string) Amount {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return Amount{Value: d}
}

func (a Amount) Add(b Amount) Amount    { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount    { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount            { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsZero() bool           { return a.Value.IsZero() }
func (a Amount) IsNegative() bool       { return a.Value.IsNegative() }
func (a Amount) IsPositive() bool       { return a.Value.IsPositive() }
func (a Amount) LessThan(b Amount) bool { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool    { return a.Value.Equal(b.Value) }
func (a Amount) String() string         { return a.Value.String() }

// IsWholeCoins reports whether the amount is an integer number of coins.
func (a Amount) IsWholeCoins() bool { return a.Value.IsInteger() }

// Int64 returns the whole-coin value, truncating any fraction. Stores
// persist whole coins as integers.
func (a Amount) Int64() int64 { return a.Value.IntPart() }

// =============================================================================
// ACCOUNT
// =============================================================================

type Nickname string

// Role replaces the magic "admin" nickname of earlier designs with an
// explicit attribute on the account.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type Account struct {
	Nickname  Nickname
	Balance   Amount
	Role      Role
	CreatedAt time.Time
}

func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// nicknamePattern allows unicode letters and digits (so Japanese
// nicknames work), underscore, and hyphen, 1-20 runes.
var nicknamePattern = regexp.MustCompile(`^[\p{L}\p{N}_-]{1,20}$`)

// ValidNickname reports whether name is an acceptable account key.
func ValidNickname(name string) bool {
	return nicknamePattern.MatchString(name)
}

// =============================================================================
// ENTRY - Atomic change to an account balance
// =============================================================================

type EntryID string

// Entry is one immutable record in the per-account history log.
//
// EventID is the idempotency key: when non-empty, at most one entry
// may exist per (nickname, event id). Pure transfers carry no event id.
type Entry struct {
	ID           EntryID
	Nickname     Nickname
	EventID      string // "" for transfers and distributions
	Amount       Amount // signed: positive credit, negative debit
	Category     string
	Counterparty Nickname // other side of a transfer, if any
	CreatedAt    time.Time
}

// Well-known entry categories. Handlers may pass their own labels; the
// engines fall back to these.
const (
	CategoryQuestReward  = "quest_reward"
	CategorySignupGrant  = "signup_grant"
	CategoryTierBonus    = "tier_bonus"
	CategoryTransferOut  = "transfer_out"
	CategoryTransferIn   = "transfer_in"
	CategoryDistribution = "distribution"
)

// =============================================================================
// RIGHT - Unlock grant for a content id
// =============================================================================

// RightOrigin tags how a right came to exist. Explicit and derived
// grants are unioned on read and never conflict.
type RightOrigin string

const (
	OriginExplicit RightOrigin = "explicit" // scan-to-claim
	OriginDerived  RightOrigin = "derived"  // tier cascade
)

type Right struct {
	Nickname  Nickname
	ContentID string
	Origin    RightOrigin
	GrantedAt time.Time
}

// =============================================================================
// RANKING
// =============================================================================

type RankEntry struct {
	Nickname Nickname
	Balance  Amount
}
