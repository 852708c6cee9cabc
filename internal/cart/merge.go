package cart

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

// LineFailure is a guest line the server did not accept during a merge.
type LineFailure struct {
	Line models.CartLine
	Err  error
}

// MergeReport describes one guest to server merge.
type MergeReport struct {
	Merged []models.CartLine
	Failed []LineFailure
}

// Login switches to authenticated mode and merges the guest cart into the
// server cart of id. The merge runs once per login: a second call for the
// same user, or any call while a merge is running, only refreshes the held
// credential and returns a nil report. A user logging back in while the merge
// started before their logout still runs gets the server cart loaded; the
// guest lines stay with that merge.
//
// Per-line merge failures are reported, not returned. The error is the one of
// the final load.
func (e *Engine) Login(ctx context.Context, id auth.Identity) (*MergeReport, error) {
	if !id.Valid() {
		return nil, ErrNoIdentity
	}
	l := logging.FromContext(ctx, e.log).With("userid", id.UserID)

	e.mu.Lock()
	if e.identity != nil && e.identity.UserID == id.UserID {
		e.identity.Token = id.Token
		e.mu.Unlock()
		return nil, nil
	}
	if e.syncing {
		if e.identity != nil {
			e.mu.Unlock()
			l.Info("cart_merge_ignored", "reason", "merge in progress")
			return nil, nil
		}
		cp := id
		e.identity = &cp
		e.epoch++
		e.mu.Unlock()
		l.Info("cart_merge_skipped", "reason", "merge in progress")
		return nil, e.Load(ctx)
	}
	cp := id
	e.identity = &cp
	e.epoch++
	e.syncing = true
	e.mu.Unlock()

	report := e.mergeGuestLines(ctx, id)
	err := e.Load(ctx)

	e.mu.Lock()
	e.syncing = false
	total := models.TotalQuantity(e.lines)
	e.mu.Unlock()

	l.Info("cart_merged", "merged", len(report.Merged), "failed", len(report.Failed))
	ev := e.newEvent(eventGuestMerged, &id)
	ev.Merged, ev.Failed, ev.TotalQuantity = len(report.Merged), len(report.Failed), total
	e.publish(ctx, ev)
	return report, err
}

// mergeGuestLines sends every guest line to the server with its full
// quantity as the delta, waits for all of them and then takes what was sent
// out of the local store.
func (e *Engine) mergeGuestLines(ctx context.Context, id auth.Identity) *MergeReport {
	l := logging.FromContext(ctx, e.log).With("userid", id.UserID)
	report := &MergeReport{Merged: []models.CartLine{}, Failed: []LineFailure{}}

	guest := e.local.Read(ctx)
	if len(guest) == 0 {
		return report
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.mergeConcurrency)
	for _, line := range guest {
		line := line
		g.Go(func() error {
			err := e.remote.UpsertLine(ctx, e.credential(id), line.ProductID, line.VariantID, line.Quantity)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				l.Warn("cart_merge_line_error", "productid", line.ProductID, "variantid", line.VariantID, "qty", line.Quantity, "error", err)
				report.Failed = append(report.Failed, LineFailure{Line: line, Err: err})
				return nil
			}
			report.Merged = append(report.Merged, line)
			return nil
		})
	}
	_ = g.Wait()

	// Only the units this merge sent leave the local store. Guest writes made
	// after a logout during the merge stay.
	sent := guest
	if e.retainFailed {
		sent = report.Merged
	}
	e.mu.Lock()
	rest := withoutSent(e.local.Read(ctx), sent)
	var err error
	if len(rest) == 0 {
		err = e.local.Clear(ctx)
	} else {
		err = e.local.Write(ctx, rest)
	}
	e.mu.Unlock()
	if err != nil {
		l.Warn("local_cart_write_error", "error", err)
	}
	return report
}

// withoutSent takes the quantities of sent off current and drops the lines
// that reach zero.
func withoutSent(current, sent []models.CartLine) []models.CartLine {
	taken := make(map[models.Key]int, len(sent))
	for _, line := range sent {
		taken[line.Key()] += line.Quantity
	}
	rest := make([]models.CartLine, 0, len(current))
	for _, line := range current {
		line.Quantity -= taken[line.Key()]
		if line.Quantity > 0 {
			rest = append(rest, line)
		}
	}
	return rest
}

// Logout returns to guest mode and reloads from the local store. The server
// cart is untouched. A running merge keeps going and still clears syncing.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	if e.identity == nil {
		e.mu.Unlock()
		return nil
	}
	userID := e.identity.UserID
	e.identity = nil
	e.epoch++
	e.mu.Unlock()

	logging.FromContext(ctx, e.log).Info("cart_logout", "userid", userID)
	return e.Load(ctx)
}

// UpdateToken swaps the credential of the held identity without a transition.
func (e *Engine) UpdateToken(token string) {
	if token == "" {
		return
	}
	e.mu.Lock()
	if e.identity != nil {
		e.identity.Token = token
	}
	e.mu.Unlock()
}

// credential returns id carrying the newest token held for its user.
func (e *Engine) credential(id auth.Identity) auth.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity != nil && e.identity.UserID == id.UserID {
		id.Token = e.identity.Token
	}
	return id
}

// SetIdentity applies an authentication change: a valid identity logs in,
// anything else logs out. A different user replaces the current one.
func (e *Engine) SetIdentity(ctx context.Context, id *auth.Identity) error {
	if !id.Valid() {
		return e.Logout(ctx)
	}

	e.mu.Lock()
	switching := e.identity != nil && e.identity.UserID != id.UserID
	e.mu.Unlock()
	if switching {
		if err := e.Logout(ctx); err != nil {
			return err
		}
	}
	_, err := e.Login(ctx, *id)
	return err
}

// Watch follows sig until ctx is done or the subscription is closed.
func (e *Engine) Watch(ctx context.Context, sig *auth.Signal) error {
	ch, cancel := sig.Subscribe()
	defer cancel()

	l := logging.FromContext(ctx, e.log)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-ch:
			if !ok {
				return nil
			}
			if err := e.SetIdentity(ctx, id); err != nil {
				l.Error("cart_identity_change_error", "error", err)
			}
		}
	}
}
