package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/mosaikshop/storefront/internal/catalog"
)

// Item is one cart line: a product snapshot, a positive quantity, an optional
// size and the derived item key. Quantity is never below 1 while the item is
// in the cart.
type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size,omitempty"`
	Key      string          `json:"sku"`
}

// Totals is the pure projection of the current item collection.
type Totals struct {
	ItemCount int             `json:"item_count"`
	Price     decimal.Decimal `json:"price"`
}

func totalsOf(items []Item) Totals {
	total := Totals{Price: decimal.Zero}
	for _, item := range items {
		total.ItemCount += item.Quantity
		total.Price = total.Price.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// storedItem is the durable guest-cart record shape, shared by the sqlite and
// redis backings. The product pointer lets decode detect truncated records.
type storedItem struct {
	Product  *catalog.Product `json:"product"`
	Quantity int              `json:"quantity"`
	Size     string           `json:"size,omitempty"`
	SKU      string           `json:"sku,omitempty"`
}

func encodeItems(items []Item) ([]byte, error) {
	records := make([]storedItem, 0, len(items))
	for _, item := range items {
		product := item.Product
		records = append(records, storedItem{
			Product:  &product,
			Quantity: item.Quantity,
			Size:     item.Size,
			SKU:      item.Key,
		})
	}
	return json.Marshal(records)
}

// decodeItems parses a persisted payload. Corrupt payloads, records without a
// product and records with a non-positive quantity are dropped silently; keys
// are backfilled when missing.
func decodeItems(payload []byte) []Item {
	if len(payload) == 0 {
		return nil
	}
	var records []storedItem
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil
	}
	items := make([]Item, 0, len(records))
	for _, record := range records {
		if record.Product == nil || record.Quantity <= 0 {
			continue
		}
		items = append(items, Item{
			Product:  *record.Product,
			Quantity: record.Quantity,
			Size:     record.Size,
			Key:      EnsureItemKey(record.SKU, record.Product.ID, record.Size),
		})
	}
	return items
}
