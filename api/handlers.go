/*
handlers.go - HTTP API handlers for the reward ledger

PURPOSE:
  Exposes the quest engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    POST   /api/login                    Register or log in
    GET    /api/balance/{nickname}       Balance lookup
    GET    /api/history/{nickname}       Entry history
    GET    /api/user-exists/{nickname}   Nickname availability

  Rewards:
    POST   /api/quest                    Credit a quest reward

  Transfers:
    POST   /api/send                     Move coins between accounts

  Unlocks:
    GET    /api/quiz-rights/{nickname}   Unlocked content ids
    POST   /api/claim-quiz               Explicit content claim

  Ranking:
    GET    /api/ranking                  Leaderboard (members only)

  Admin:
    POST   /api/admin/distribute         Credit every member account
    POST   /api/admin/delete             Delete an account

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape
  3. Call the engine
  4. Serialize response
  5. Map engine errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, insufficient funds
  - 404: Account not found
  - 409: Transient conflicts (caller should retry)
  - 500: Storage errors

  Note that an idempotent replay is NOT an error: reporting an already
  credited quest returns 200 with applied=false.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ncoin/reward-engine/ledger"
	"github.com/ncoin/reward-engine/quest"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *quest.Engine
}

// NewHandler creates a new handler around the engine.
func NewHandler(engine *quest.Engine) *Handler {
	return &Handler{Engine: engine}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Login registers the nickname on first use and returns the account.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	role := ledger.RoleMember
	if req.Role == string(ledger.RoleAdmin) {
		role = ledger.RoleAdmin
	}

	account, created, err := h.Engine.Register(r.Context(), ledger.Nickname(req.Nickname), role)
	if err != nil {
		writeEngineError(w, "Failed to log in", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Account: toAccountDTO(account),
		Created: created,
	})
}

// GetBalance returns the account balance.
// GET /api/balance/{nickname}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	nickname := chi.URLParam(r, "nickname")

	balance, err := h.Engine.Balance(r.Context(), ledger.Nickname(nickname))
	if err != nil {
		writeEngineError(w, "Failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		Nickname: nickname,
		Balance:  balance.Int64(),
	})
}

// GetHistory returns all entries for the account, oldest first.
// GET /api/history/{nickname}
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	nickname := chi.URLParam(r, "nickname")

	entries, err := h.Engine.History(r.Context(), ledger.Nickname(nickname))
	if err != nil {
		writeEngineError(w, "Failed to get history", err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Nickname: nickname,
		Entries:  toEntryDTOs(entries),
	})
}

// UserExists answers a nickname availability check.
// GET /api/user-exists/{nickname}
func (h *Handler) UserExists(w http.ResponseWriter, r *http.Request) {
	nickname := chi.URLParam(r, "nickname")

	exists, err := h.Engine.Exists(r.Context(), ledger.Nickname(nickname))
	if err != nil {
		writeEngineError(w, "Failed to check nickname", err)
		return
	}

	writeJSON(w, http.StatusOK, ExistsResponse{Exists: exists})
}

// =============================================================================
// REWARD HANDLERS
// =============================================================================

// CompleteQuest credits a quest reward, exactly once per quest.
// POST /api/quest
func (h *Handler) CompleteQuest(w http.ResponseWriter, r *http.Request) {
	var req QuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.QuestID == "" {
		writeError(w, http.StatusBadRequest, "questId is required", nil)
		return
	}

	res, err := h.Engine.ApplyReward(
		r.Context(),
		ledger.Nickname(req.Nickname),
		req.QuestID,
		ledger.NewAmount(req.Reward),
		ledger.CategoryQuestReward,
	)
	if err != nil {
		writeEngineError(w, "Failed to credit reward", err)
		return
	}

	writeJSON(w, http.StatusOK, QuestResponse{
		Balance:      res.Balance.Int64(),
		Applied:      res.Applied,
		TierUnlocked: res.TierUnlocked,
		BonusGranted: res.BonusGranted,
	})
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// Send moves coins from one account to another.
// POST /api/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Engine.Transfer(
		r.Context(),
		ledger.Nickname(req.From),
		ledger.Nickname(req.To),
		ledger.NewAmount(req.Amount),
	)
	if err != nil {
		writeEngineError(w, "Failed to send coins", err)
		return
	}

	writeJSON(w, http.StatusOK, SendResponse{Balance: res.FromBalance.Int64()})
}

// =============================================================================
// UNLOCK HANDLERS
// =============================================================================

// GetRights returns the content ids the account may access.
// GET /api/quiz-rights/{nickname}
func (h *Handler) GetRights(w http.ResponseWriter, r *http.Request) {
	nickname := chi.URLParam(r, "nickname")

	unlocked, err := h.Engine.UnlockState(r.Context(), ledger.Nickname(nickname))
	if err != nil {
		writeEngineError(w, "Failed to get unlock state", err)
		return
	}
	if unlocked == nil {
		unlocked = []string{}
	}

	writeJSON(w, http.StatusOK, RightsResponse{
		Nickname: nickname,
		Unlocked: unlocked,
	})
}

// Claim records an explicit content unlock.
// POST /api/claim-quiz
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	already, err := h.Engine.Claim(r.Context(), ledger.Nickname(req.Nickname), req.ContentID)
	if err != nil {
		writeEngineError(w, "Failed to claim content", err)
		return
	}

	writeJSON(w, http.StatusOK, ClaimResponse{Granted: !already, Already: already})
}

// =============================================================================
// RANKING HANDLERS
// =============================================================================

// GetRanking returns the leaderboard, admins excluded.
// GET /api/ranking
func (h *Handler) GetRanking(w http.ResponseWriter, r *http.Request) {
	ranks, err := h.Engine.Ranking(r.Context())
	if err != nil {
		writeEngineError(w, "Failed to get ranking", err)
		return
	}

	writeJSON(w, http.StatusOK, toRankDTOs(ranks))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Distribute credits every member account by the given amount.
// POST /api/admin/distribute
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	credited, err := h.Engine.Distribute(r.Context(), ledger.NewAmount(req.Amount))
	if err != nil {
		writeEngineError(w, "Failed to distribute coins", err)
		return
	}

	writeJSON(w, http.StatusOK, DistributeResponse{Credited: credited})
}

// DeleteAccount removes an account and its history.
// POST /api/admin/delete
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Engine.DeleteAccount(r.Context(), ledger.Nickname(req.Nickname)); err != nil {
		writeEngineError(w, "Failed to delete account", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
