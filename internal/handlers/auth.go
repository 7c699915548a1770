package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/stocklink/bomsync/internal/models"
	"github.com/stocklink/bomsync/internal/utils"
)

// TokenRequest exchanges an account's API key for an operator JWT
type TokenRequest struct {
	AccountID uint   `json:"account_id"`
	Email     string `json:"email"`
	APIKey    string `json:"api_key"`
}

// issueToken handles the operator token exchange
func (r *Router) issueToken(w http.ResponseWriter, req *http.Request) {
	var tokenReq TokenRequest
	if err := json.NewDecoder(req.Body).Decode(&tokenReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// 1. Find Account
	var account models.Account
	if err := r.db.First(&account, tokenReq.AccountID).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !account.Active {
		respondError(w, http.StatusUnauthorized, "Account disabled")
		return
	}

	// 2. Check API Key
	if account.APIKeyHash == "" || !utils.CheckAPIKey(tokenReq.APIKey, account.APIKeyHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 3. Generate Token
	token, err := utils.GenerateOperatorToken(account.ID, tokenReq.Email, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"account": map[string]interface{}{
			"id":   account.ID,
			"name": account.Name,
		},
	})
}
