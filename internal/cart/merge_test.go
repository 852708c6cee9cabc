package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

func TestLogin_MergesGuestCartIntoEmptyServerCart(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, `[{"id":1,"variantid":"A","qty":2},{"id":2,"variantid":"","qty":1}]`)
	require.NoError(t, e.Load(ctx))

	report, err := e.Login(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Len(t, report.Merged, 2)
	assert.Empty(t, report.Failed)

	assert.Equal(t, map[string]int{"1::A": 2, "2::": 1}, quantities(remote.cart(alice.UserID)))
	assert.Equal(t, map[string]int{"1::A": 2, "2::": 1}, quantities(e.Snapshot().Lines))
	assert.Empty(t, local.Read(ctx))
	assert.Equal(t, Authenticated, e.Mode())
	assert.False(t, e.Syncing())
}

func TestLogin_EmptyGuestCartOnlyLoads(t *testing.T) {
	ctx := context.Background()
	e, _, remote := newTestEngine(t, "")
	remote.seed(alice.UserID, models.CartLine{ProductID: "9", Quantity: 1})

	report, err := e.Login(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, report.Merged)
	assert.Empty(t, remote.upsertCalls())
	assert.Equal(t, 1, remote.fetchCount())
	assert.Equal(t, 1, e.TotalQuantity())
}

func TestLogin_GuestIncrementsThenLogin(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, "")

	for i := 0; i < 3; i++ {
		require.NoError(t, e.Increment(ctx, perfume("5", "")))
	}
	require.Len(t, e.Snapshot().Lines, 1)
	require.Equal(t, 3, e.TotalQuantity())

	_, err := e.Login(ctx, alice)
	require.NoError(t, err)

	assert.Equal(t, []upsertCall{{alice.UserID, "5", "", 3}}, remote.upsertCalls())
	assert.Equal(t, map[string]int{"5::": 3}, quantities(e.Snapshot().Lines))
	assert.Empty(t, local.Read(ctx))
}

func TestLogin_SecondTriggerDoesNotMergeAgain(t *testing.T) {
	ctx := context.Background()
	e, _, remote := newTestEngine(t, `[{"id":1,"qty":2}]`)

	_, err := e.Login(ctx, alice)
	require.NoError(t, err)
	report, err := e.Login(ctx, auth.Identity{UserID: alice.UserID, Token: "rotated"})
	require.NoError(t, err)

	assert.Nil(t, report)
	assert.Len(t, remote.upsertCalls(), 1)
	assert.Equal(t, "rotated", e.Identity().Token)
	assert.Equal(t, map[string]int{"1::": 2}, quantities(remote.cart(alice.UserID)))
}

func TestLogin_ConcurrentTriggersMergeOnce(t *testing.T) {
	ctx := context.Background()
	e, _, remote := newTestEngine(t, `[{"id":1,"qty":2},{"id":2,"qty":1}]`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Login(ctx, alice)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, remote.upsertCalls(), 2)
	assert.Equal(t, map[string]int{"1::": 2, "2::": 1}, quantities(remote.cart(alice.UserID)))
}

func TestLogin_SyncingWhileMerging(t *testing.T) {
	ctx := context.Background()
	e, _, remote := newTestEngine(t, `[{"id":1,"qty":1}]`)

	gate := make(chan struct{})
	remote.upsertGate = gate

	done := make(chan error, 1)
	go func() {
		_, err := e.Login(ctx, alice)
		done <- err
	}()
	require.Eventually(t, e.Syncing, time.Second, time.Millisecond)

	// another user showing up mid-merge is ignored
	report, err := e.Login(ctx, auth.Identity{UserID: "other", Token: "t"})
	require.NoError(t, err)
	assert.Nil(t, report)

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, e.Syncing())
	assert.Equal(t, alice.UserID, e.Identity().UserID)
}

func TestLogin_LogoutMidMergeThenLoginAgainMergesOnce(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, `[{"id":1,"qty":2}]`)

	gate := make(chan struct{})
	remote.upsertGate = gate

	done := make(chan error, 1)
	go func() {
		_, err := e.Login(ctx, alice)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(remote.upsertCalls()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, e.Logout(ctx))
	assert.True(t, e.Syncing())

	report, err := e.Login(ctx, alice)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, Authenticated, e.Mode())

	close(gate)
	require.NoError(t, <-done)

	assert.False(t, e.Syncing())
	assert.Equal(t, []upsertCall{{alice.UserID, "1", "", 2}}, remote.upsertCalls())
	assert.Equal(t, map[string]int{"1::": 2}, quantities(remote.cart(alice.UserID)))
	assert.Equal(t, map[string]int{"1::": 2}, quantities(e.Snapshot().Lines))
	assert.Empty(t, local.Read(ctx))
}

func TestLogin_GuestChangesAfterLogoutMidMergeAreKept(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, `[{"id":1,"qty":2}]`)

	gate := make(chan struct{})
	remote.upsertGate = gate

	done := make(chan error, 1)
	go func() {
		_, err := e.Login(ctx, alice)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(remote.upsertCalls()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, e.Logout(ctx))
	require.NoError(t, e.Increment(ctx, perfume("1", "")))
	require.NoError(t, e.Increment(ctx, perfume("5", "")))

	close(gate)
	require.NoError(t, <-done)

	want := map[string]int{"1::": 1, "5::": 1}
	assert.Equal(t, Guest, e.Mode())
	assert.Equal(t, want, quantities(local.Read(ctx)))
	assert.Equal(t, want, quantities(e.Snapshot().Lines))
	assert.Equal(t, map[string]int{"1::": 2}, quantities(remote.cart(alice.UserID)))
}

func TestLogin_PartialFailureIsLossyByDefault(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, `[{"id":1,"qty":2},{"id":2,"qty":4}]`)
	remote.failUpsert = func(productID string) error {
		if productID == "2" {
			return errDown
		}
		return nil
	}

	report, err := e.Login(ctx, alice)
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "2", report.Failed[0].Line.ProductID)
	assert.ErrorIs(t, report.Failed[0].Err, errDown)
	assert.Len(t, report.Merged, 1)

	assert.Empty(t, local.Read(ctx))
	assert.Equal(t, map[string]int{"1::": 2}, quantities(e.Snapshot().Lines))
}

func TestLogin_RetainFailedLines(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, `[{"id":1,"qty":2},{"id":2,"qty":4}]`, WithRetainFailedMergeLines(true))
	remote.failUpsert = func(productID string) error {
		if productID == "2" {
			return errDown
		}
		return nil
	}

	_, err := e.Login(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2::": 4}, quantities(local.Read(ctx)))

	// next login of the same user after a logout retries the kept line
	remote.failUpsert = nil
	require.NoError(t, e.Logout(ctx))
	assert.Equal(t, map[string]int{"2::": 4}, quantities(e.Snapshot().Lines))

	_, err = e.Login(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1::": 2, "2::": 4}, quantities(remote.cart(alice.UserID)))
	assert.Empty(t, local.Read(ctx))
}

func TestLogin_FinalLoadFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, `[{"id":1,"qty":2}]`)
	remote.failFetch = errDown

	report, err := e.Login(ctx, alice)
	require.ErrorIs(t, err, ErrLoad)
	assert.Len(t, report.Merged, 1)
	assert.Empty(t, local.Read(ctx))
	assert.Empty(t, e.Snapshot().Lines)
	assert.False(t, e.Syncing())
}

func TestLogin_RejectsInvalidIdentity(t *testing.T) {
	e, _, remote := newTestEngine(t, `[{"id":1,"qty":2}]`)

	_, err := e.Login(context.Background(), auth.Identity{UserID: "42"})
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Equal(t, Guest, e.Mode())
	assert.Empty(t, remote.upsertCalls())
}

func TestLogout_ReturnsToLocalStore(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, "")
	remote.seed(alice.UserID, models.CartLine{ProductID: "9", Quantity: 5})
	loginWithoutMerge(t, e)

	require.NoError(t, e.Logout(ctx))
	assert.Equal(t, Guest, e.Mode())
	assert.Empty(t, e.Snapshot().Lines)

	require.NoError(t, e.Increment(ctx, perfume("3", "")))
	assert.Equal(t, map[string]int{"3::": 1}, quantities(local.Read(ctx)))
	assert.Equal(t, map[string]int{"9::": 5}, quantities(remote.cart(alice.UserID)))

	// the guard is reset, so the next login merges again
	_, err := e.Login(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"9::": 5, "3::": 1}, quantities(e.Snapshot().Lines))
	assert.NoError(t, e.Logout(ctx))
	assert.NoError(t, e.Logout(ctx))
}

func TestSetIdentity_SwitchingUsers(t *testing.T) {
	ctx := context.Background()
	e, _, remote := newTestEngine(t, "")
	remote.seed("42", models.CartLine{ProductID: "1", Quantity: 1})
	remote.seed("43", models.CartLine{ProductID: "2", Quantity: 2})

	require.NoError(t, e.SetIdentity(ctx, &alice))
	assert.Equal(t, map[string]int{"1::": 1}, quantities(e.Snapshot().Lines))

	require.NoError(t, e.SetIdentity(ctx, &auth.Identity{UserID: "43", Token: "tok-bob"}))
	assert.Equal(t, "43", e.Identity().UserID)
	assert.Equal(t, map[string]int{"2::": 2}, quantities(e.Snapshot().Lines))

	require.NoError(t, e.SetIdentity(ctx, nil))
	assert.Equal(t, Guest, e.Mode())
}

func TestWatch_FollowsSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e, local, remote := newTestEngine(t, `[{"id":1,"qty":2}]`)
	sig := auth.NewSignal(nil)

	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx, sig) }()

	sig.Set(&alice)
	require.Eventually(t, func() bool {
		return e.Mode() == Authenticated && !e.Syncing() && e.TotalQuantity() == 2
	}, time.Second, time.Millisecond)
	assert.Empty(t, local.Read(ctx))

	sig.UpdateToken("tok-new")
	require.Eventually(t, func() bool {
		id := e.Identity()
		return id != nil && id.Token == "tok-new"
	}, time.Second, time.Millisecond)
	assert.Len(t, remote.upsertCalls(), 1)

	sig.Clear()
	require.Eventually(t, func() bool { return e.Mode() == Guest }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
