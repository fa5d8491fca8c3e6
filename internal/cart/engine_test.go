package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mosaikshop/storefront/internal/catalog"
)

type stubGuestStore struct {
	mu       sync.Mutex
	items    []Item
	loadErr  error
	saveErr  error
	clearErr error
	saves    int
	clears   int
}

func (s *stubGuestStore) Load(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return copyItems(s.items), nil
}

func (s *stubGuestStore) Save(ctx context.Context, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.items = copyItems(items)
	return nil
}

func (s *stubGuestStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	s.items = nil
	return nil
}

func (s *stubGuestStore) stored() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.items)
}

type stubRemote struct {
	mu         sync.Mutex
	items      []Item
	fetchErr   error
	replaceErr error
	replaces   int
	fetchHook  func()
}

func (r *stubRemote) Fetch(ctx context.Context) ([]Item, error) {
	r.mu.Lock()
	hook := r.fetchHook
	r.fetchHook = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return copyItems(r.items), nil
}

func (r *stubRemote) Replace(ctx context.Context, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.items = copyItems(items)
	return nil
}

func (r *stubRemote) stored() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyItems(r.items)
}

type stubSession struct {
	mu            sync.Mutex
	authenticated bool
}

func (s *stubSession) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *stubSession) set(authenticated bool) {
	s.mu.Lock()
	s.authenticated = authenticated
	s.mu.Unlock()
}

func newTestEngine(t *testing.T, guest *stubGuestStore, remote *stubRemote, sess *stubSession) *Engine {
	t.Helper()
	engine, err := NewEngine(guest, remote, sess, nil, nil)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return engine
}

func item(id int64, size string, qty int) Item {
	return Item{
		Product:  catalog.Product{ID: id, Name: "Product", Price: decimal.NewFromInt(10), Category: "shirts"},
		Quantity: qty,
		Size:     size,
		Key:      ItemKey(id, size),
	}
}

func TestStartGuestLoadsStore(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{items: []Item{item(1, "M", 2)}}
	engine := newTestEngine(t, guest, &stubRemote{}, &stubSession{})

	engine.Start(context.Background())

	if engine.State() != StateGuestActive {
		t.Fatalf("unexpected state %s", engine.State())
	}
	if got := engine.Items(); len(got) != 1 || got[0].Key != "1-M" {
		t.Fatalf("unexpected items %+v", got)
	}
}

func TestStartAuthenticatedFetchFailureSettlesEmpty(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{fetchErr: errors.New("boom")}
	engine := newTestEngine(t, &stubGuestStore{}, remote, &stubSession{authenticated: true})

	engine.Start(context.Background())

	if engine.State() != StateAccountActive {
		t.Fatalf("unexpected state %s", engine.State())
	}
	if got := engine.Items(); len(got) != 0 {
		t.Fatalf("expected empty cart, got %+v", got)
	}
}

func TestAddIncrementsExistingKeyWithoutDuplicates(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{}
	engine := newTestEngine(t, guest, &stubRemote{}, &stubSession{})
	engine.Start(context.Background())

	product := catalog.Product{ID: 1, Name: "Shirt", Price: decimal.NewFromInt(10), Category: "shirts"}
	engine.Add(context.Background(), product, "M")
	got := engine.Add(context.Background(), product, "M")

	if len(got) != 1 {
		t.Fatalf("expected single entry, got %d", len(got))
	}
	if got[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", got[0].Quantity)
	}

	engine.Add(context.Background(), product, "L")
	if got := engine.Items(); len(got) != 2 {
		t.Fatalf("different size must be a distinct entry, got %+v", got)
	}

	engine.Flush()
	if stored := guest.stored(); len(stored) != 2 {
		t.Fatalf("guest store should hold both entries, got %+v", stored)
	}
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, &stubGuestStore{}, &stubRemote{}, &stubSession{})
	engine.Start(context.Background())

	product := catalog.Product{ID: 1, Name: "Shirt", Price: decimal.NewFromInt(10), Category: "shirts"}
	engine.Add(context.Background(), product, "M")

	got := engine.SetQuantity(context.Background(), "1-M", 0)
	if len(got) != 0 {
		t.Fatalf("quantity 0 must remove the item, got %+v", got)
	}
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{}
	engine := newTestEngine(t, guest, &stubRemote{}, &stubSession{})
	engine.Start(context.Background())

	product := catalog.Product{ID: 1, Name: "Shirt", Price: decimal.NewFromInt(10), Category: "shirts"}
	engine.Add(context.Background(), product, "M")
	engine.Flush()
	savesBefore := guest.saves

	got := engine.Remove(context.Background(), "nope")
	engine.Flush()

	if len(got) != 1 {
		t.Fatalf("absent key must not change the cart, got %+v", got)
	}
	if guest.saves != savesBefore {
		t.Fatal("absent key removal must not persist")
	}
}

func TestMutationPersistsRemotelyWhenAuthenticated(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{}
	engine := newTestEngine(t, &stubGuestStore{}, remote, &stubSession{authenticated: true})
	engine.Start(context.Background())

	product := catalog.Product{ID: 4, Name: "Coat", Price: decimal.NewFromInt(80), Category: "coats"}
	engine.Add(context.Background(), product, "")
	engine.Flush()

	if stored := remote.stored(); len(stored) != 1 || stored[0].Key != "4" {
		t.Fatalf("expected remote replace with the new item, got %+v", stored)
	}
}

func TestMergeTakesMaxAndAppendsGuestOnly(t *testing.T) {
	t.Parallel()

	merged := mergeItems(
		[]Item{item(1, "", 1), item(3, "", 3)}, // backend: A:1, C:3
		[]Item{item(1, "", 2), item(2, "", 1)}, // guest:   A:2, B:1
	)

	byKey := map[string]int{}
	for _, m := range merged {
		byKey[m.Key] = m.Quantity
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged items, got %+v", merged)
	}
	if byKey["1"] != 2 {
		t.Fatalf("shared key must take max quantity, got %d", byKey["1"])
	}
	if byKey["2"] != 1 || byKey["3"] != 3 {
		t.Fatalf("one-sided keys must survive, got %+v", byKey)
	}
}

func TestLoginMergesAndClearsGuestStore(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{items: []Item{item(1, "M", 1)}}
	remote := &stubRemote{}
	sess := &stubSession{}
	engine := newTestEngine(t, guest, remote, sess)
	engine.Start(context.Background())

	sess.set(true)
	engine.HandleLogin(context.Background())

	if engine.State() != StateAccountActive {
		t.Fatalf("unexpected state %s", engine.State())
	}
	got := engine.Items()
	if len(got) != 1 || got[0].Key != "1-M" || got[0].Quantity != 1 {
		t.Fatalf("unexpected merged cart %+v", got)
	}
	if stored := remote.stored(); len(stored) != 1 {
		t.Fatalf("merged cart must be pushed upstream, got %+v", stored)
	}
	if stored := guest.stored(); len(stored) != 0 {
		t.Fatalf("guest store must be cleared after merge, got %+v", stored)
	}
}

func TestLoginWithEmptyGuestCartSkipsMerge(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{}
	remote := &stubRemote{items: []Item{item(9, "", 4)}}
	sess := &stubSession{}
	engine := newTestEngine(t, guest, remote, sess)
	engine.Start(context.Background())

	sess.set(true)
	engine.HandleLogin(context.Background())

	if remote.replaces != 0 {
		t.Fatal("empty guest cart must not trigger a replace")
	}
	if got := engine.Items(); len(got) != 1 || got[0].Quantity != 4 {
		t.Fatalf("expected backend cart to be adopted, got %+v", got)
	}
}

func TestLoginPushFailureKeepsGuestData(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{items: []Item{item(1, "M", 2)}}
	remote := &stubRemote{replaceErr: errors.New("boom")}
	sess := &stubSession{}
	engine := newTestEngine(t, guest, remote, sess)
	engine.Start(context.Background())

	sess.set(true)
	engine.HandleLogin(context.Background())

	if got := engine.Items(); len(got) != 1 || got[0].Key != "1-M" {
		t.Fatalf("guest items must stay active after a failed push, got %+v", got)
	}
	if stored := guest.stored(); len(stored) != 1 {
		t.Fatalf("guest store must be left for retry, got %+v", stored)
	}
	if guest.clears != 0 {
		t.Fatal("guest store must not be cleared on merge failure")
	}
}

func TestLoginFetchFailureKeepsGuestData(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{items: []Item{item(1, "M", 2)}}
	remote := &stubRemote{fetchErr: errors.New("boom")}
	sess := &stubSession{}
	engine := newTestEngine(t, guest, remote, sess)
	engine.Start(context.Background())

	sess.set(true)
	engine.HandleLogin(context.Background())

	if got := engine.Items(); len(got) != 1 || got[0].Key != "1-M" {
		t.Fatalf("guest items must stay active after a failed fetch, got %+v", got)
	}
	if guest.clears != 0 {
		t.Fatal("guest store must not be cleared on merge failure")
	}
}

func TestMutationDuringMergeWins(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{items: []Item{item(1, "M", 1)}}
	remote := &stubRemote{}
	sess := &stubSession{}
	engine := newTestEngine(t, guest, remote, sess)
	engine.Start(context.Background())

	product := catalog.Product{ID: 2, Name: "Hat", Price: decimal.NewFromInt(5), Category: "hats"}
	remote.fetchHook = func() {
		engine.Add(context.Background(), product, "")
	}

	sess.set(true)
	engine.HandleLogin(context.Background())
	engine.Flush()

	got := engine.Items()
	keys := map[string]bool{}
	for _, g := range got {
		keys[g.Key] = true
	}
	if !keys["2"] {
		t.Fatalf("mid-merge mutation must survive, got %+v", got)
	}
	if guest.clears != 0 {
		t.Fatal("superseded merge must not clear the guest store")
	}
	if engine.State() != StateAccountActive {
		t.Fatalf("engine must settle in account mode, got %s", engine.State())
	}
}

func TestLogoutClearsCartAndGuestStorage(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{}
	remote := &stubRemote{items: []Item{item(1, "", 1), item(2, "", 1)}}
	sess := &stubSession{authenticated: true}
	engine := newTestEngine(t, guest, remote, sess)
	engine.Start(context.Background())

	if len(engine.Items()) != 2 {
		t.Fatalf("expected 2 items before logout, got %+v", engine.Items())
	}

	sess.set(false)
	engine.HandleLogout(context.Background())

	if got := engine.Items(); len(got) != 0 {
		t.Fatalf("logout must empty the cart, got %+v", got)
	}
	if engine.State() != StateGuestActive {
		t.Fatalf("unexpected state %s", engine.State())
	}
	if guest.clears != 1 {
		t.Fatalf("logout must clear guest storage, clears=%d", guest.clears)
	}
}

func TestGuestCheckoutThenLoginScenario(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{}
	remote := &stubRemote{}
	sess := &stubSession{}
	engine := newTestEngine(t, guest, remote, sess)
	engine.Start(context.Background())

	productX := catalog.Product{ID: 10, Name: "Shirt X", Price: decimal.NewFromInt(20), Category: "shirts"}
	engine.Add(context.Background(), productX, "M")
	engine.Flush()

	sess.set(true)
	engine.HandleLogin(context.Background())

	got := engine.Items()
	if len(got) != 1 || got[0].Key != "10-M" || got[0].Quantity != 1 {
		t.Fatalf("unexpected cart after merge %+v", got)
	}
	if stored := guest.stored(); len(stored) != 0 {
		t.Fatalf("guest storage must be empty after merge, got %+v", stored)
	}
}

func TestClearPersistsEmptyState(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{items: []Item{item(1, "", 2)}}
	engine := newTestEngine(t, &stubGuestStore{}, remote, &stubSession{authenticated: true})
	engine.Start(context.Background())

	engine.Clear(context.Background())
	engine.Flush()

	if got := engine.Items(); len(got) != 0 {
		t.Fatalf("clear must empty the cart, got %+v", got)
	}
	if stored := remote.stored(); len(stored) != 0 {
		t.Fatalf("clear must push the empty cart, got %+v", stored)
	}
}

func TestPersistFailureIsAbsorbed(t *testing.T) {
	t.Parallel()

	guest := &stubGuestStore{saveErr: errors.New("disk full")}
	engine := newTestEngine(t, guest, &stubRemote{}, &stubSession{})
	engine.Start(context.Background())

	product := catalog.Product{ID: 1, Name: "Shirt", Price: decimal.NewFromInt(10), Category: "shirts"}
	engine.Add(context.Background(), product, "")
	engine.Flush()

	if got := engine.Items(); len(got) != 1 {
		t.Fatalf("cart must keep working after a failed save, got %+v", got)
	}
}

func TestTotalsFollowMutations(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, &stubGuestStore{}, &stubRemote{}, &stubSession{})
	engine.Start(context.Background())

	shirt := catalog.Product{ID: 1, Name: "Shirt", Price: decimal.NewFromInt(10), Category: "shirts"}
	hat := catalog.Product{ID: 2, Name: "Hat", Price: decimal.NewFromInt(5), Category: "hats"}

	engine.Add(context.Background(), shirt, "")
	engine.Add(context.Background(), shirt, "")
	engine.SetQuantity(context.Background(), "2", 3) // absent, no-op
	engine.Add(context.Background(), hat, "")
	engine.SetQuantity(context.Background(), "2", 3)

	totals := engine.Totals()
	if totals.ItemCount != 5 {
		t.Fatalf("expected 5 items, got %d", totals.ItemCount)
	}
	if !totals.Price.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected total 35, got %s", totals.Price)
	}
}
