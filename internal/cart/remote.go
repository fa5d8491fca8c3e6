package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	pkgerrors "github.com/mosaikshop/storefront/pkg/errors"

	"github.com/mosaikshop/storefront/internal/catalog"
)

// Doer issues authenticated requests against the upstream store. Satisfied by
// session.Manager.
type Doer interface {
	Do(ctx context.Context, method, path string, body []byte) (*http.Response, error)
}

// RemoteClient replaces and fetches the full server-side cart for an
// authenticated session. Errors are returned so the engine can decide the
// fallback; the engine never surfaces them to API callers.
type RemoteClient interface {
	Fetch(ctx context.Context) ([]Item, error)
	Replace(ctx context.Context, items []Item) error
}

type apiCartItem struct {
	ProductID int64            `json:"productId"`
	Quantity  int              `json:"quantity"`
	Size      *string          `json:"size"`
	SKU       string           `json:"sku,omitempty"`
	Product   *catalog.Product `json:"product,omitempty"`
}

type apiCart struct {
	Items []apiCartItem `json:"items"`
}

type remoteClient struct {
	doer Doer
}

// NewRemoteClient wires the upstream cart endpoints behind the RemoteClient port.
func NewRemoteClient(doer Doer) (RemoteClient, error) {
	if doer == nil {
		return nil, fmt.Errorf("authenticated doer required")
	}
	return &remoteClient{doer: doer}, nil
}

func (c *remoteClient) Fetch(ctx context.Context) ([]Item, error) {
	resp, err := c.doer.Do(ctx, http.MethodGet, "/auth/cart", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, fmt.Sprintf("cart fetch returned status %d", resp.StatusCode))
	}

	var payload apiCart
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode cart")
	}

	items := make([]Item, 0, len(payload.Items))
	for _, entry := range payload.Items {
		if entry.Product == nil || entry.Quantity <= 0 {
			continue
		}
		size := ""
		if entry.Size != nil {
			size = *entry.Size
		}
		items = append(items, Item{
			Product:  *entry.Product,
			Quantity: entry.Quantity,
			Size:     size,
			Key:      EnsureItemKey(entry.SKU, entry.Product.ID, size),
		})
	}
	return items, nil
}

func (c *remoteClient) Replace(ctx context.Context, items []Item) error {
	payload := apiCart{Items: make([]apiCartItem, 0, len(items))}
	for _, item := range items {
		var size *string
		if item.Size != "" {
			s := item.Size
			size = &s
		}
		payload.Items = append(payload.Items, apiCartItem{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
			Size:      size,
			SKU:       item.Key,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}

	resp, err := c.doer.Do(ctx, http.MethodPut, "/auth/cart", body)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeUpstream, fmt.Sprintf("cart replace returned status %d", resp.StatusCode))
	}
	return nil
}
