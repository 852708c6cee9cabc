package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/perfume_shop/internal/cartapi"
	"github.com/Skotchmaster/perfume_shop/pkg/db"
	"github.com/Skotchmaster/perfume_shop/pkg/hash"
	"github.com/Skotchmaster/perfume_shop/pkg/tokens"
)

var secret = []byte("cartctl-secret")

// startBackend serves the cart API and counts the /validate calls it gets.
func startBackend(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	gdb, err := db.Open(context.Background(), "sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, cartapi.AutoMigrate(gdb))
	pwHash, err := hash.HashPassword("api-pass")
	require.NoError(t, err)

	validations := new(atomic.Int32)
	e := echo.New()
	e.Pre(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/validate" {
				validations.Add(1)
			}
			return next(c)
		}
	})
	repo := &cartapi.GormRepo{DB: gdb}
	cartapi.Register(e, &cartapi.Deps{
		CartHandler: &cartapi.CartHTTP{Svc: &cartapi.CartService{Repo: repo}},
		AuthHandler: &cartapi.AuthHTTP{Svc: &cartapi.AuthService{
			Email: "api@shop.test", PasswordHash: pwHash, Secret: secret, TTL: time.Minute,
		}},
		JWTSecret: secret,
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv.URL, validations
}

type snapshotOut struct {
	Mode  string `json:"mode"`
	Lines []struct {
		ProductID    string `json:"product_id"`
		VariantID    string `json:"variant_id"`
		Quantity     int    `json:"quantity"`
		ServerLineID string `json:"server_line_id"`
	} `json:"lines"`
	TotalQuantity int `json:"total_quantity"`
}

func run(t *testing.T, args ...string) snapshotOut {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut

	full := append([]string{"cartctl", "--json", "--env-file", filepath.Join(t.TempDir(), "none.env")}, args...)
	require.NoError(t, app.Run(full), errOut.String())

	// login prints a merge summary before the snapshot
	dec := json.NewDecoder(bytes.NewReader(out.Bytes()[bytes.IndexByte(out.Bytes(), '{'):]))
	var snap snapshotOut
	require.NoError(t, dec.Decode(&snap), out.String())
	return snap
}

func TestCartctl_GuestThenLogin(t *testing.T) {
	for _, store := range []string{"file", "sqlite"} {
		t.Run(store, func(t *testing.T) {
			url, _ := startBackend(t)
			t.Setenv("STOREFRONT_API_BASE", url)
			t.Setenv("STOREFRONT_DATA_DIR", t.TempDir())
			t.Setenv("STOREFRONT_CART_STORE", store)
			t.Setenv("STOREFRONT_LOG_LEVEL", "error")

			snap := run(t, "add", "--qty", "2", "--name", "Amber Oud", "--price", "499", "5")
			assert.Equal(t, "guest", snap.Mode)
			assert.Equal(t, 2, snap.TotalQuantity)

			snap = run(t, "inc", "--variant", "B", "7")
			assert.Equal(t, 3, snap.TotalQuantity)

			snap = run(t, "dec", "5")
			assert.Equal(t, 2, snap.TotalQuantity)

			token, _, err := tokens.IssueAccess(secret, "api@shop.test", "api", time.Minute)
			require.NoError(t, err)
			snap = run(t, "login", "--user", "42", "--token", token)
			assert.Equal(t, "authenticated", snap.Mode)
			assert.Equal(t, 2, snap.TotalQuantity)
			for _, l := range snap.Lines {
				assert.NotEmpty(t, l.ServerLineID)
			}

			snap = run(t, "show")
			assert.Equal(t, "authenticated", snap.Mode)
			assert.Equal(t, 2, snap.TotalQuantity)

			snap = run(t, "remove", "--variant", "B", "7")
			assert.Equal(t, 1, snap.TotalQuantity)

			snap = run(t, "logout")
			assert.Equal(t, "guest", snap.Mode)
			assert.Zero(t, snap.TotalQuantity)

			snap = run(t, "add", "9")
			require.Equal(t, 1, snap.TotalQuantity)
			snap = run(t, "clear")
			assert.Zero(t, snap.TotalQuantity)
		})
	}
}

func TestCartctl_RefreshedTokenServesTheWholeRun(t *testing.T) {
	url, validations := startBackend(t)
	t.Setenv("STOREFRONT_API_BASE", url)
	t.Setenv("STOREFRONT_DATA_DIR", t.TempDir())
	t.Setenv("STOREFRONT_CART_STORE", "file")
	t.Setenv("STOREFRONT_LOG_LEVEL", "error")
	t.Setenv("STOREFRONT_VALIDATE_EMAIL", "api@shop.test")
	t.Setenv("STOREFRONT_VALIDATE_PASSWORD", "api-pass")
	t.Setenv("STOREFRONT_MERGE_CONCURRENCY", "1")

	run(t, "add", "5")
	run(t, "add", "6")
	require.Zero(t, validations.Load())

	snap := run(t, "login", "--user", "42", "--token", "stale-token")
	assert.Equal(t, "authenticated", snap.Mode)
	assert.Equal(t, 2, snap.TotalQuantity)
	assert.Equal(t, int32(1), validations.Load())

	// the refreshed token was saved with the session
	snap = run(t, "inc", "5")
	assert.Equal(t, 3, snap.TotalQuantity)
	assert.Equal(t, int32(1), validations.Load())
}

func TestCartctl_ProductRequired(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE", "http://127.0.0.1:1")
	t.Setenv("STOREFRONT_DATA_DIR", t.TempDir())
	t.Setenv("STOREFRONT_CART_STORE", "memory")

	app := newApp()
	var out bytes.Buffer
	app.Writer, app.ErrWriter = &out, &out
	err := app.Run([]string{"cartctl", "--env-file", filepath.Join(t.TempDir(), "x.env"), "inc"})
	assert.ErrorContains(t, err, "product id is required")
}
