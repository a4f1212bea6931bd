/*
dto.go - Request and response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. Domain types stay
  inside the ledger and quest packages; only these DTOs cross the wire.

CONVENTIONS:
  - Coin amounts travel as integers (whole coins only).
  - Timestamps are RFC3339 in UTC.
  - Errors: {"error": "...", "details": "..."}

SEE ALSO:
  - handlers.go: Handlers that produce these
*/
package api

import (
	"time"

	"github.com/ncoin/reward-engine/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

// LoginRequest registers the nickname on first use and logs in on
// later ones.
type LoginRequest struct {
	Nickname string `json:"nickname"`
	Role     string `json:"role,omitempty"`
}

// QuestRequest reports a completed quest for reward crediting.
type QuestRequest struct {
	Nickname string `json:"nickname"`
	QuestID  string `json:"questId"`
	Reward   int64  `json:"reward"`
}

// SendRequest moves coins between accounts.
type SendRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// ClaimRequest records an explicit content unlock.
type ClaimRequest struct {
	Nickname  string `json:"nickname"`
	ContentID string `json:"contentId"`
}

// DistributeRequest credits every member account.
type DistributeRequest struct {
	Amount int64 `json:"amount"`
}

// DeleteRequest removes an account and its history.
type DeleteRequest struct {
	Nickname string `json:"nickname"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// AccountDTO is the wire form of an account.
type AccountDTO struct {
	Nickname  string    `json:"nickname"`
	Balance   int64     `json:"balance"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoginResponse reports the account state after login.
type LoginResponse struct {
	Account AccountDTO `json:"account"`
	Created bool       `json:"created"`
}

// BalanceResponse carries a single balance lookup.
type BalanceResponse struct {
	Nickname string `json:"nickname"`
	Balance  int64  `json:"balance"`
}

// QuestResponse reports the outcome of a reward credit.
type QuestResponse struct {
	Balance      int64 `json:"balance"`
	Applied      bool  `json:"applied"`
	TierUnlocked bool  `json:"tierUnlocked"`
	BonusGranted bool  `json:"bonusGranted"`
}

// SendResponse reports the sender's balance after a transfer.
type SendResponse struct {
	Balance int64 `json:"balance"`
}

// RightsResponse lists unlocked content ids.
type RightsResponse struct {
	Nickname string   `json:"nickname"`
	Unlocked []string `json:"unlocked"`
}

// ClaimResponse reports whether the claim was new.
type ClaimResponse struct {
	Granted bool `json:"granted"`
	Already bool `json:"already"`
}

// EntryDTO is the wire form of one history entry.
type EntryDTO struct {
	ID           string    `json:"id"`
	EventID      string    `json:"eventId,omitempty"`
	Amount       int64     `json:"amount"`
	Category     string    `json:"category"`
	Counterparty string    `json:"counterparty,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HistoryResponse lists an account's entries, oldest first.
type HistoryResponse struct {
	Nickname string     `json:"nickname"`
	Entries  []EntryDTO `json:"entries"`
}

// RankDTO is one row of the leaderboard.
type RankDTO struct {
	Rank     int    `json:"rank"`
	Nickname string `json:"nickname"`
	Balance  int64  `json:"balance"`
}

// ExistsResponse answers a nickname availability check.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// DistributeResponse reports how many accounts were credited.
type DistributeResponse struct {
	Credited int `json:"credited"`
}

// ErrorResponse is the uniform error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		Nickname:  string(a.Nickname),
		Balance:   a.Balance.Int64(),
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt.UTC(),
	}
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EntryDTO{
			ID:           string(e.ID),
			EventID:      e.EventID,
			Amount:       e.Amount.Int64(),
			Category:     e.Category,
			Counterparty: string(e.Counterparty),
			CreatedAt:    e.CreatedAt.UTC(),
		}
	}
	return dtos
}

func toRankDTOs(ranks []ledger.RankEntry) []RankDTO {
	dtos := make([]RankDTO, len(ranks))
	for i, r := range ranks {
		dtos[i] = RankDTO{
			Rank:     i + 1,
			Nickname: string(r.Nickname),
			Balance:  r.Balance.Int64(),
		}
	}
	return dtos
}
