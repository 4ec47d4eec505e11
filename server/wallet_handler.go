package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"coinfm/core/economy"
	"coinfm/core/ledger"
	"coinfm/logger"
	"coinfm/model"

	"gorm.io/gorm"
)

// GetBalanceHandler returns the caller's coin balance.
func (h *APIHandler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		logger.Error("[Wallet] balance read failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to read balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// GetTransactionsHandler returns the caller's coin history, oldest first.
func (h *APIHandler) GetTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	records, err := h.ledger.History(r.Context(), userID, 100)
	if err != nil {
		logger.Error("[Wallet] history read failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to read transactions")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// RedeemPromoRequest is the promo redemption body.
type RedeemPromoRequest struct {
	Code string `json:"code"`
}

// RedeemPromoHandler upgrades the account to premium for free when the
// submitted code is on the allow-list.
func (h *APIHandler) RedeemPromoHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	var req RedeemPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	if err := h.promo.Redeem(userID, req.Code); err != nil {
		if errors.Is(err, economy.ErrInvalidCode) {
			writeError(w, http.StatusBadRequest, "Invalid promo code")
			return
		}
		logger.Error("[Wallet] promo redemption failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to redeem code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"premium": true})
}

// UpgradePremiumHandler buys premium with coins. The debit and the flag
// flip commit in one transaction; a failed upgrade costs nothing.
func (h *APIHandler) UpgradePremiumHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if user.Premium {
		writeJSON(w, http.StatusOK, map[string]bool{"premium": true})
		return
	}

	err = h.ledger.DB().WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if _, txErr := ledger.ApplyTx(tx, userID, h.cfg.PremiumCost, "Premium upgrade", model.TxSpend); txErr != nil {
			return txErr
		}
		return tx.Model(&model.User{}).Where("id = ?", userID).Update("premium", true).Error
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			writeError(w, http.StatusPaymentRequired, "Not enough coins")
			return
		}
		logger.Error("[Wallet] premium upgrade failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to upgrade")
		return
	}

	h.ledger.PublishBalance(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]bool{"premium": true})
}

// UpdateSettingsRequest is the account settings body.
type UpdateSettingsRequest struct {
	Private bool   `json:"private"`
	Theme   string `json:"theme"`
}

// UpdateSettingsHandler saves profile visibility and theme preference.
func (h *APIHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch req.Theme {
	case "light", "dark", "system":
	default:
		writeError(w, http.StatusBadRequest, "theme must be light, dark or system")
		return
	}

	if err := h.userRepo.UpdateSettings(userID, req.Private, req.Theme); err != nil {
		logger.Error("[Wallet] settings update failed", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"private": req.Private, "theme": req.Theme})
}

// GetMeHandler returns the caller's account document.
func (h *APIHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
