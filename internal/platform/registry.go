package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stocklink/bomsync/internal/bom"
	"github.com/stocklink/bomsync/internal/models"
)

// Registry hands out per-account remote clients. Account credentials live in
// the accounts table; session tokens are shared through one SessionCache so
// every subsystem reuses the same platform session per tenant.
type Registry struct {
	db       *gorm.DB
	sessions *SessionCache
	timeout  time.Duration
}

// NewRegistry creates a client registry backed by the given database.
func NewRegistry(db *gorm.DB, sessions *SessionCache, timeout time.Duration) *Registry {
	return &Registry{
		db:       db,
		sessions: sessions,
		timeout:  timeout,
	}
}

// ClientFor returns a remote client for the account, or an error when the
// account is unknown or disabled.
func (r *Registry) ClientFor(ctx context.Context, accountID uint) (bom.RemoteClient, error) {
	var account models.Account
	err := r.db.WithContext(ctx).First(&account, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %d not found", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	if !account.Active {
		return nil, fmt.Errorf("account %d is disabled", accountID)
	}

	client := NewClient(account.PlatformURL, account.PlatformUser, account.PlatformSecret, r.timeout)
	return NewCommerce(client, r.sessions, account.ID), nil
}
