package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

// Increment adds one unit of line, inserting it with its display metadata
// when the cart does not have it yet.
func (e *Engine) Increment(ctx context.Context, line models.CartLine) error {
	return e.Add(ctx, line, 1)
}

// Add adds qty units of line in one step.
func (e *Engine) Add(ctx context.Context, line models.CartLine, qty int) error {
	if line.ProductID == "" || qty < 1 {
		return ErrInvalidLine
	}

	e.mu.Lock()
	lines := slices.Clone(e.lines)
	evType := eventLineIncremented
	if i := models.Find(lines, line.Key()); i >= 0 {
		lines[i].Quantity += qty
	} else {
		nl := line
		nl.Quantity = qty
		nl.ServerLineID = ""
		lines = append(lines, nl)
		evType = eventLineAdded
	}
	id, snap, fns := e.applyLocked(ctx, lines)
	e.mu.Unlock()
	notify(snap, fns)

	ev := e.newEvent(evType, id)
	ev.ProductID, ev.VariantID, ev.Delta, ev.TotalQuantity = line.ProductID, line.VariantID, qty, snap.TotalQuantity

	if id == nil {
		e.publish(ctx, ev)
		return nil
	}
	if err := e.remote.UpsertLine(ctx, *id, line.ProductID, line.VariantID, qty); err != nil {
		return e.resync(ctx, "add", err)
	}
	e.publish(ctx, ev)
	return nil
}

// Decrement removes one unit. A line at quantity 1 stays at 1; Remove deletes it.
func (e *Engine) Decrement(ctx context.Context, productID, variantID string) error {
	k := models.Key{ProductID: productID, VariantID: variantID}

	e.mu.Lock()
	i := models.Find(e.lines, k)
	if i < 0 || e.lines[i].Quantity <= 1 {
		e.mu.Unlock()
		return nil
	}
	lines := slices.Clone(e.lines)
	lines[i].Quantity--
	id, snap, fns := e.applyLocked(ctx, lines)
	e.mu.Unlock()
	notify(snap, fns)

	ev := e.newEvent(eventLineDecremented, id)
	ev.ProductID, ev.VariantID, ev.Delta, ev.TotalQuantity = productID, variantID, -1, snap.TotalQuantity

	if id == nil {
		e.publish(ctx, ev)
		return nil
	}
	if err := e.remote.UpsertLine(ctx, *id, productID, variantID, -1); err != nil {
		return e.resync(ctx, "decrement", err)
	}
	e.publish(ctx, ev)
	return nil
}

// Remove deletes the line whatever its quantity. serverLineID may be empty;
// the id known to the snapshot is used then. Removing a missing line is a no-op.
func (e *Engine) Remove(ctx context.Context, productID, variantID, serverLineID string) error {
	k := models.Key{ProductID: productID, VariantID: variantID}

	e.mu.Lock()
	i := models.Find(e.lines, k)
	if i < 0 {
		e.mu.Unlock()
		return nil
	}
	if serverLineID == "" {
		serverLineID = e.lines[i].ServerLineID
	}
	lines := slices.Delete(slices.Clone(e.lines), i, i+1)
	id, snap, fns := e.applyLocked(ctx, lines)
	e.mu.Unlock()
	notify(snap, fns)

	ev := e.newEvent(eventLineRemoved, id)
	ev.ProductID, ev.VariantID, ev.TotalQuantity = productID, variantID, snap.TotalQuantity

	if id == nil {
		e.publish(ctx, ev)
		return nil
	}
	if serverLineID == "" {
		// added during this session and never reloaded; ask the server for its id
		sid, err := e.lookupServerLineID(ctx, *id, k)
		if err != nil {
			return e.resync(ctx, "remove", err)
		}
		if sid == "" {
			e.publish(ctx, ev)
			return nil
		}
		serverLineID = sid
	}
	if err := e.remote.RemoveLine(ctx, *id, serverLineID, variantID); err != nil {
		return e.resync(ctx, "remove", err)
	}
	e.publish(ctx, ev)
	return nil
}

// Clear empties the snapshot and the local store, e.g. after checkout.
// The server cart is left to the backend.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	id := e.identityLocked()
	snap, fns := e.commitLocked([]models.CartLine{})
	err := e.local.Clear(ctx)
	e.mu.Unlock()
	notify(snap, fns)

	if err != nil {
		logging.FromContext(ctx, e.log).Warn("local_cart_clear_error", "error", err)
	}
	e.publish(ctx, e.newEvent(eventCartCleared, id))
	return nil
}

// applyLocked commits lines and, in guest mode, persists them before the
// lock is released so concurrent writers cannot reorder.
func (e *Engine) applyLocked(ctx context.Context, lines []models.CartLine) (*auth.Identity, models.Snapshot, []func(models.Snapshot)) {
	id := e.identityLocked()
	snap, fns := e.commitLocked(lines)
	if id == nil {
		if err := e.local.Write(ctx, lines); err != nil {
			logging.FromContext(ctx, e.log).Warn("local_cart_write_error", "error", err)
		}
	}
	return id, snap, fns
}

func (e *Engine) lookupServerLineID(ctx context.Context, id auth.Identity, k models.Key) (string, error) {
	lines, err := e.remote.FetchAll(ctx, id)
	if err != nil {
		return "", err
	}
	if i := models.Find(lines, k); i >= 0 {
		return lines[i].ServerLineID, nil
	}
	return "", nil
}

// resync replaces the optimistic snapshot with the server state after a
// failed confirmation.
func (e *Engine) resync(ctx context.Context, op string, cause error) error {
	l := logging.FromContext(ctx, e.log).With("op", op)
	l.Warn("cart_change_not_confirmed", "error", cause)

	err := fmt.Errorf("%w: %w", ErrNotConfirmed, cause)
	loadErr := e.Load(ctx)
	if loadErr != nil {
		l.Error("cart_resync_error", "error", loadErr)
		err = errors.Join(err, loadErr)
	}

	e.mu.Lock()
	id := e.identityLocked()
	total := models.TotalQuantity(e.lines)
	e.mu.Unlock()

	ev := e.newEvent(eventCartResynced, id)
	ev.TotalQuantity = total
	e.publish(ctx, ev)
	return err
}
