package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

// Engine owns the live cart snapshot. In guest mode it reads and writes the
// local store; with an identity held the remote gateway is authoritative.
type Engine struct {
	local  LocalStore
	remote RemoteGateway
	pub    Publisher
	topic  string
	log    *slog.Logger

	mergeConcurrency int
	retainFailed     bool

	mu       sync.Mutex
	identity *auth.Identity
	lines    []models.CartLine
	loadErr  error
	// epoch changes on every identity transition; late loads for an older
	// epoch are dropped.
	epoch uint64
	// syncing is set for the whole life of a merge, across identity changes.
	syncing bool

	nextObserver int
	observers    map[int]func(models.Snapshot)

	loads singleflight.Group
}

func New(local LocalStore, remote RemoteGateway, opts ...Option) *Engine {
	e := &Engine{
		local:            local,
		remote:           remote,
		topic:            defaultTopic,
		log:              logging.Discard(),
		mergeConcurrency: defaultMergeConcurrency,
		lines:            []models.CartLine{},
		observers:        make(map[int]func(models.Snapshot)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modeLocked()
}

func (e *Engine) modeLocked() Mode {
	if e.identity != nil {
		return Authenticated
	}
	return Guest
}

// Identity returns a copy of the held identity, nil in guest mode.
func (e *Engine) Identity() *auth.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identityLocked()
}

func (e *Engine) identityLocked() *auth.Identity {
	if e.identity == nil {
		return nil
	}
	cp := *e.identity
	return &cp
}

func (e *Engine) Snapshot() models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.NewSnapshot(e.lines)
}

func (e *Engine) TotalQuantity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.TotalQuantity(e.lines)
}

// Err is the error of the last authenticated load, nil after a good one.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

// Syncing reports whether a guest cart merge is running.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// Subscribe registers fn for every new snapshot. fn runs outside the engine
// lock and must not block.
func (e *Engine) Subscribe(fn func(models.Snapshot)) (cancel func()) {
	e.mu.Lock()
	id := e.nextObserver
	e.nextObserver++
	e.observers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

// commitLocked replaces the lines and returns what notify needs.
func (e *Engine) commitLocked(lines []models.CartLine) (models.Snapshot, []func(models.Snapshot)) {
	e.lines = lines
	snap := models.NewSnapshot(lines)
	fns := make([]func(models.Snapshot), 0, len(e.observers))
	for _, fn := range e.observers {
		fns = append(fns, fn)
	}
	return snap, fns
}

func notify(snap models.Snapshot, fns []func(models.Snapshot)) {
	for _, fn := range fns {
		fn(snap)
	}
}

// Load replaces the snapshot from the authoritative store of the current
// mode. Concurrent authenticated loads share one gateway call.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	id := e.identityLocked()
	epoch := e.epoch
	e.mu.Unlock()

	if id == nil {
		e.loadGuest(ctx, epoch)
		return nil
	}

	// every waiting caller gets this result, so it ignores the first caller's cancellation
	detached := context.WithoutCancel(ctx)
	key := fmt.Sprintf("%s#%d", id.UserID, epoch)
	_, err, coalesced := e.loads.Do(key, func() (any, error) {
		return nil, e.loadRemote(detached, *id, epoch)
	})
	if coalesced {
		logging.FromContext(ctx, e.log).Debug("cart_load_coalesced", "userid", id.UserID)
	}
	return err
}

// loadGuest reads the local store under the same lock guest mutations
// persist under.
func (e *Engine) loadGuest(ctx context.Context, epoch uint64) {
	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	lines := e.local.Read(ctx)
	e.loadErr = nil
	snap, fns := e.commitLocked(lines)
	e.mu.Unlock()

	notify(snap, fns)
}

func (e *Engine) loadRemote(ctx context.Context, id auth.Identity, epoch uint64) error {
	l := logging.FromContext(ctx, e.log).With("mode", Authenticated.String(), "userid", id.UserID)

	lines, err := e.remote.FetchAll(ctx, id)
	if err == nil {
		lines = models.Dedupe(lines)
	}

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		l.Debug("cart_load_discarded")
		return nil
	}
	if err != nil {
		e.loadErr = err
		lines = []models.CartLine{}
	} else {
		e.loadErr = nil
	}
	snap, fns := e.commitLocked(lines)
	e.mu.Unlock()

	notify(snap, fns)
	if err != nil {
		l.Error("cart_load_error", "error", err)
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return nil
}
