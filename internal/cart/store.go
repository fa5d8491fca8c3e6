package cart

import "context"

// GuestStore is the durable local backing for unauthenticated carts. Load
// returns an empty slice for missing or corrupt payloads; an error means the
// backing itself was unreachable. The engine absorbs both the same way.
type GuestStore interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, items []Item) error
	Clear(ctx context.Context) error
}
