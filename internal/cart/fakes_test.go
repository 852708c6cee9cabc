package cart

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/gateway"
	"github.com/Skotchmaster/perfume_shop/internal/localstore"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

var errDown = fmt.Errorf("%w: connection refused", gateway.ErrNetwork)

type upsertCall struct {
	UserID    string
	ProductID string
	VariantID string
	Delta     int
}

// fakeRemote keeps per-user server carts with the delta contract of the
// real backend: create on positive delta, floor at 1, explicit removal.
type fakeRemote struct {
	mu      sync.Mutex
	carts   map[string][]models.CartLine
	nextID  int
	upserts []upsertCall
	removes []string
	fetches int

	failUpsert func(productID string) error
	failRemove error
	failFetch  error
	// fetchGate, when set, holds FetchAll until it is closed.
	fetchGate chan struct{}
	// upsertGate, when set, holds UpsertLine until it is closed.
	upsertGate chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{carts: map[string][]models.CartLine{}}
}

func (f *fakeRemote) seed(userID string, lines ...models.CartLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range lines {
		f.nextID++
		l.ServerLineID = strconv.Itoa(f.nextID)
		f.carts[userID] = append(f.carts[userID], l)
	}
}

func (f *fakeRemote) FetchAll(ctx context.Context, id auth.Identity) ([]models.CartLine, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.fetchGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch != nil {
		return nil, f.failFetch
	}
	out := make([]models.CartLine, len(f.carts[id.UserID]))
	copy(out, f.carts[id.UserID])
	return out, nil
}

func (f *fakeRemote) UpsertLine(ctx context.Context, id auth.Identity, productID, variantID string, delta int) error {
	f.mu.Lock()
	f.upserts = append(f.upserts, upsertCall{id.UserID, productID, variantID, delta})
	gate := f.upsertGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		if err := f.failUpsert(productID); err != nil {
			return err
		}
	}
	lines := f.carts[id.UserID]
	k := models.Key{ProductID: productID, VariantID: variantID}
	if i := models.Find(lines, k); i >= 0 {
		lines[i].Quantity = max(lines[i].Quantity+delta, 1)
		return nil
	}
	if delta > 0 {
		f.nextID++
		f.carts[id.UserID] = append(lines, models.CartLine{
			ProductID:    productID,
			VariantID:    variantID,
			Quantity:     delta,
			ServerLineID: strconv.Itoa(f.nextID),
		})
	}
	return nil
}

func (f *fakeRemote) RemoveLine(ctx context.Context, id auth.Identity, serverLineID, variantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, serverLineID)
	if f.failRemove != nil {
		return f.failRemove
	}
	lines := f.carts[id.UserID]
	for i := range lines {
		if lines[i].ServerLineID == serverLineID && lines[i].VariantID == variantID {
			f.carts[id.UserID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRemote) cart(userID string) []models.CartLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CartLine(nil), f.carts[userID]...)
}

func (f *fakeRemote) upsertCalls() []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upsertCall(nil), f.upserts...)
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	keys   []string
	err    error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(Event))
	p.keys = append(p.keys, key)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// gatedStore takes its snapshot on the first Read and then holds that Read
// until release is closed.
type gatedStore struct {
	*localstore.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(seed string) *gatedStore {
	return &gatedStore{
		MemoryStore: localstore.NewMemoryStore([]byte(seed)),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (s *gatedStore) Read(ctx context.Context) []models.CartLine {
	lines := s.MemoryStore.Read(ctx)
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return lines
}
