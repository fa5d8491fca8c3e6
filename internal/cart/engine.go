package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mosaikshop/storefront/pkg/logger"
	"github.com/mosaikshop/storefront/pkg/metrics"

	"github.com/mosaikshop/storefront/internal/catalog"
)

// State names the engine's position in the session lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateGuestActive   State = "guest_active"
	StateAccountActive State = "account_active"
	StateMerging       State = "merging"
)

// Metric labels for the persistence backings.
const (
	backingGuest  = "guest"
	backingRemote = "remote"
)

// Merge outcomes reported to metrics.
const (
	mergeCommitted  = "committed"
	mergeSuperseded = "superseded"
	mergeFallback   = "fallback"
)

type sessionState interface {
	Authenticated() bool
}

// Engine owns the in-memory cart and reconciles it against the guest store or
// the upstream cart depending on session mode. All mutations go through it;
// nothing else touches the stores.
//
// Mutations commit to memory synchronously and persist asynchronously. The
// login merge works on a captured snapshot and only commits if no newer
// mutation or merge superseded it (last write wins).
type Engine struct {
	guest   GuestStore
	remote  RemoteClient
	session sessionState
	logg    *logger.Logger
	metrics *metrics.CartSyncMetrics

	mu       sync.Mutex
	state    State
	items    []Item
	revision uint64
	mergeSeq uint64

	persists sync.WaitGroup
}

// NewEngine builds the reconciliation engine over the provided ports.
func NewEngine(guest GuestStore, remote RemoteClient, session sessionState, logg *logger.Logger, m *metrics.CartSyncMetrics) (*Engine, error) {
	if guest == nil {
		return nil, fmt.Errorf("guest store required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote client required")
	}
	if session == nil {
		return nil, fmt.Errorf("session state required")
	}
	return &Engine{
		guest:   guest,
		remote:  remote,
		session: session,
		logg:    logg,
		metrics: m,
		state:   StateUninitialized,
	}, nil
}

// Start performs the initial load for the current session mode. Fetch and
// load failures settle to an empty cart; they are logged, never returned.
func (e *Engine) Start(ctx context.Context) {
	if e.session.Authenticated() {
		items, err := e.remote.Fetch(ctx)
		if err != nil {
			e.warn(ctx, "initial cart fetch failed, starting empty", err)
			items = nil
		}
		e.commit(items, StateAccountActive)
		return
	}

	items, err := e.guest.Load(ctx)
	if err != nil {
		e.warn(ctx, "guest cart load failed, starting empty", err)
		items = nil
	}
	e.commit(items, StateGuestActive)
}

// Add puts one unit of (product, size) in the cart. An existing key is
// incremented; a new key is appended with quantity 1.
func (e *Engine) Add(ctx context.Context, product catalog.Product, size string) []Item {
	key := ItemKey(product.ID, size)

	e.mu.Lock()
	next := copyItems(e.items)
	found := false
	for i := range next {
		if next[i].Key == key {
			next[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		next = append(next, Item{Product: product, Quantity: 1, Size: size, Key: key})
	}
	e.items = next
	e.revision++
	snapshot := copyItems(next)
	mode := e.activeBacking()
	e.mu.Unlock()

	e.persistAsync(ctx, mode, snapshot)
	return snapshot
}

// Remove drops the item with the given key. Absent keys are a no-op.
func (e *Engine) Remove(ctx context.Context, key string) []Item {
	e.mu.Lock()
	next := make([]Item, 0, len(e.items))
	removed := false
	for _, item := range e.items {
		if item.Key == key {
			removed = true
			continue
		}
		next = append(next, item)
	}
	if !removed {
		snapshot := copyItems(e.items)
		e.mu.Unlock()
		return snapshot
	}
	e.items = next
	e.revision++
	snapshot := copyItems(next)
	mode := e.activeBacking()
	e.mu.Unlock()

	e.persistAsync(ctx, mode, snapshot)
	return snapshot
}

// SetQuantity pins the quantity for a key. Quantities below 1 remove the item
// instead of storing a non-positive count.
func (e *Engine) SetQuantity(ctx context.Context, key string, quantity int) []Item {
	if quantity < 1 {
		return e.Remove(ctx, key)
	}

	e.mu.Lock()
	next := copyItems(e.items)
	found := false
	for i := range next {
		if next[i].Key == key {
			next[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		snapshot := copyItems(e.items)
		e.mu.Unlock()
		return snapshot
	}
	e.items = next
	e.revision++
	snapshot := copyItems(next)
	mode := e.activeBacking()
	e.mu.Unlock()

	e.persistAsync(ctx, mode, snapshot)
	return snapshot
}

// Clear empties the cart and persists the empty state to the active backing.
func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	e.items = nil
	e.revision++
	mode := e.activeBacking()
	e.mu.Unlock()

	e.persistAsync(ctx, mode, nil)
}

// HandleLogin reconciles the pre-login guest cart with the account cart.
// Guest quantities win ties via max(); guest-only keys are appended. The
// merged cart is pushed upstream before the guest store is cleared, so a
// failed push keeps the guest data for a retry on the next login.
func (e *Engine) HandleLogin(ctx context.Context) {
	guestItems, err := e.guest.Load(ctx)
	if err != nil {
		e.warn(ctx, "guest cart load failed during login", err)
		guestItems = nil
	}

	if len(guestItems) == 0 {
		items, err := e.remote.Fetch(ctx)
		if err != nil {
			e.warn(ctx, "cart fetch failed after login, starting empty", err)
			items = nil
		}
		e.commit(items, StateAccountActive)
		return
	}

	e.mu.Lock()
	e.mergeSeq++
	seq := e.mergeSeq
	startRev := e.revision
	e.state = StateMerging
	e.mu.Unlock()

	backendItems, err := e.remote.Fetch(ctx)
	if err != nil {
		e.warn(ctx, "merge fetch failed, keeping guest cart", err)
		e.metrics.IncMerge(mergeFallback)
		e.commitMerge(ctx, seq, startRev, guestItems, false)
		return
	}

	merged := mergeItems(backendItems, guestItems)

	if err := e.remote.Replace(ctx, merged); err != nil {
		e.warn(ctx, "merge push failed, keeping guest cart", err)
		e.metrics.IncMerge(mergeFallback)
		e.commitMerge(ctx, seq, startRev, guestItems, false)
		return
	}

	if e.commitMerge(ctx, seq, startRev, merged, true) {
		e.metrics.IncMerge(mergeCommitted)
	}
}

// HandleLogout empties the cart and the guest store: a logged-out session
// starts clean instead of resurrecting the pre-login guest cart. Deliberate
// replication of the storefront behavior.
func (e *Engine) HandleLogout(ctx context.Context) {
	e.mu.Lock()
	e.items = nil
	e.revision++
	e.mergeSeq++ // invalidate any in-flight merge
	e.state = StateGuestActive
	e.mu.Unlock()

	if err := e.guest.Clear(ctx); err != nil {
		e.warn(ctx, "guest cart clear failed on logout", err)
		e.metrics.IncPersistFailure(backingGuest)
	}
}

// Items returns a copy of the current cart contents.
func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyItems(e.items)
}

// Totals recomputes the derived totals from the current items.
func (e *Engine) Totals() Totals {
	e.mu.Lock()
	items := e.items
	e.mu.Unlock()
	return totalsOf(items)
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Flush waits for outstanding persistence calls. Used on shutdown and in tests.
func (e *Engine) Flush() {
	e.persists.Wait()
}

// commit replaces the in-memory cart unconditionally (startup, logout, plain
// login without a merge).
func (e *Engine) commit(items []Item, state State) {
	e.mu.Lock()
	e.items = copyItems(items)
	e.revision++
	e.state = state
	e.mu.Unlock()
}

// commitMerge installs a merge result only while it is still relevant: a
// later login or a mutation that landed mid-merge wins instead. The guest
// store is cleared only after a committed successful push.
func (e *Engine) commitMerge(ctx context.Context, seq, startRev uint64, items []Item, clearGuest bool) bool {
	e.mu.Lock()
	if e.mergeSeq != seq || e.revision != startRev {
		if e.state == StateMerging && e.mergeSeq == seq {
			e.state = StateAccountActive
		}
		e.mu.Unlock()
		e.metrics.IncMerge(mergeSuperseded)
		return false
	}
	e.items = copyItems(items)
	e.revision++
	e.state = StateAccountActive
	e.mu.Unlock()

	if clearGuest {
		if err := e.guest.Clear(ctx); err != nil {
			e.warn(ctx, "guest cart clear failed after merge", err)
			e.metrics.IncPersistFailure(backingGuest)
		}
	}
	return true
}

// mergeItems combines the account cart with the pre-login guest cart. Shared
// keys take the maximum quantity rather than the sum so repeated logins do
// not double-count; guest-only keys keep their relative order at the tail.
func mergeItems(backend, guest []Item) []Item {
	merged := copyItems(backend)
	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[item.Key] = i
	}
	for _, g := range guest {
		if i, ok := index[g.Key]; ok {
			if g.Quantity > merged[i].Quantity {
				merged[i].Quantity = g.Quantity
			}
			continue
		}
		index[g.Key] = len(merged)
		merged = append(merged, g)
	}
	return merged
}

// persistAsync pushes the snapshot to the backing that was active at mutation
// time. Failures are absorbed: logged, counted, never surfaced to callers.
func (e *Engine) persistAsync(ctx context.Context, backing string, snapshot []Item) {
	ctx = context.WithoutCancel(ctx)
	e.persists.Add(1)
	go func() {
		defer e.persists.Done()
		start := time.Now()

		var err error
		if backing == backingRemote {
			err = e.remote.Replace(ctx, snapshot)
		} else {
			err = e.guest.Save(ctx, snapshot)
		}

		e.metrics.ObserveSync(backing, time.Since(start))
		if err != nil {
			e.metrics.IncPersistFailure(backing)
			e.warn(ctx, "cart persistence failed", err)
		}
	}()
}

func (e *Engine) activeBacking() string {
	if e.state == StateAccountActive || e.state == StateMerging {
		return backingRemote
	}
	return backingGuest
}

func (e *Engine) warn(ctx context.Context, msg string, err error) {
	if e.logg == nil {
		return
	}
	ctx = e.logg.WithField(ctx, "error", err.Error())
	e.logg.Warn(ctx, msg)
}

func copyItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
