package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/stocklink/bomsync/internal/models"
	"github.com/stocklink/bomsync/internal/utils"
)

type contextKey string

// AccountContextKey carries the authenticated account id.
const AccountContextKey contextKey = "account"

// Auth verifies operator JWTs on API routes and puts the account id on the
// request context.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], jwtSecret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			accountID, ok := claims["account_id"].(float64)
			if !ok || accountID <= 0 {
				http.Error(w, "Token carries no account", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, uint(accountID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountLookup loads an active account by id. A nil account means the id is
// unknown or the account is inactive.
type AccountLookup func(ctx context.Context, id uint) (*models.Account, error)

// GormAccountLookup reads accounts from the database.
func GormAccountLookup(db *gorm.DB) AccountLookup {
	return func(ctx context.Context, id uint) (*models.Account, error) {
		var account models.Account
		err := db.WithContext(ctx).Where("id = ? AND active = true", id).First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &account, nil
	}
}

// WebhookAuth verifies the per-account API key on inbound webhook requests.
// The account is identified by the X-Account-ID header; the key travels in
// X-API-Key and is checked against the stored bcrypt hash.
func WebhookAuth(lookup AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			accountHeader := r.Header.Get("X-Account-ID")
			if key == "" || accountHeader == "" {
				http.Error(w, "Missing webhook credentials", http.StatusUnauthorized)
				return
			}

			accountID, err := strconv.ParseUint(accountHeader, 10, 32)
			if err != nil {
				http.Error(w, "Invalid account id", http.StatusUnauthorized)
				return
			}

			account, err := lookup(r.Context(), uint(accountID))
			if err != nil {
				http.Error(w, "Authentication unavailable", http.StatusInternalServerError)
				return
			}
			if account == nil {
				http.Error(w, "Unknown account", http.StatusUnauthorized)
				return
			}

			if !utils.CheckAPIKey(key, account.APIKeyHash) {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, account.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountID extracts the authenticated account id from the request context.
func AccountID(r *http.Request) (uint, bool) {
	id, ok := r.Context().Value(AccountContextKey).(uint)
	return id, ok
}
