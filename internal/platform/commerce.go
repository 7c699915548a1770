package platform

import (
	"context"

	"github.com/stocklink/bomsync/internal/bom"
)

// Commerce implements bom.RemoteClient against the platform's XML-RPC API.
// Sessions come from the shared SessionCache; an expired-session fault is
// recovered once per call by refreshing the session and retrying.
type Commerce struct {
	client    *Client
	sessions  *SessionCache
	accountID uint
}

// NewCommerce creates a platform-backed remote client for one account.
func NewCommerce(client *Client, sessions *SessionCache, accountID uint) *Commerce {
	return &Commerce{
		client:    client,
		sessions:  sessions,
		accountID: accountID,
	}
}

type productInfo struct {
	Name        FlexString `json:"name"`
	Qty         FlexFloat  `json:"qty"`
	ManageStock bool       `json:"manage_stock"`
}

type variationInfo struct {
	Qty         FlexFloat `json:"qty"`
	ManageStock bool      `json:"manage_stock"`
}

// GetProduct fetches the current platform record for a product.
func (c *Commerce) GetProduct(ctx context.Context, externalID int64) (*bom.RemoteProduct, error) {
	var info productInfo
	if err := c.call(ctx, "catalog.product.info", []interface{}{externalID}, &info); err != nil {
		return nil, err
	}
	return &bom.RemoteProduct{
		Name:          info.Name.String(),
		StockQuantity: info.Qty.Ptr(),
		StockManaged:  info.ManageStock,
	}, nil
}

// GetVariation fetches the current platform record for a variation.
func (c *Commerce) GetVariation(ctx context.Context, parentExternalID, variationExternalID int64) (*bom.RemoteVariation, error) {
	var info variationInfo
	args := []interface{}{parentExternalID, variationExternalID}
	if err := c.call(ctx, "catalog.product.variation.info", args, &info); err != nil {
		return nil, err
	}
	return &bom.RemoteVariation{
		StockQuantity: info.Qty.Ptr(),
		StockManaged:  info.ManageStock,
	}, nil
}

// UpdateProductStock pushes a new stock value for a parent product.
func (c *Commerce) UpdateProductStock(ctx context.Context, externalID int64, upd bom.StockUpdate) error {
	args := []interface{}{externalID, stockUpdateArgs(upd)}
	return c.call(ctx, "catalog.product.stock.update", args, nil)
}

// UpdateVariationStock pushes a new stock value for a specific variation.
// This is a different write shape than UpdateProductStock and must stay one.
func (c *Commerce) UpdateVariationStock(ctx context.Context, parentExternalID, variationExternalID int64, upd bom.StockUpdate) error {
	args := []interface{}{parentExternalID, variationExternalID, stockUpdateArgs(upd)}
	return c.call(ctx, "catalog.product.variation.stock.update", args, nil)
}

func stockUpdateArgs(upd bom.StockUpdate) map[string]interface{} {
	return map[string]interface{}{
		"qty":          upd.StockQuantity,
		"manage_stock": upd.ManageStock,
		"stock_status": upd.StockStatus,
	}
}

// call runs one session-scoped API call: check the context, fetch a session
// token, invoke, and retry exactly once on an expired session.
func (c *Commerce) call(ctx context.Context, method string, args []interface{}, result interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	session, err := c.sessions.Get(c.accountID, c.client.Login)
	if err != nil {
		return err
	}

	err = c.client.Call(session, method, args, result)
	if IsSessionExpired(err) {
		c.sessions.Invalidate(c.accountID)
		session, err = c.sessions.Get(c.accountID, c.client.Login)
		if err != nil {
			return err
		}
		err = c.client.Call(session, method, args, result)
	}
	return err
}
