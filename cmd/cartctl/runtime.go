package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/cart"
	"github.com/Skotchmaster/perfume_shop/internal/config"
	"github.com/Skotchmaster/perfume_shop/internal/gateway"
	"github.com/Skotchmaster/perfume_shop/internal/localstore"
	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/mykafka"
)

type runtime struct {
	cfg     *config.Client
	log     *slog.Logger
	engine  *cart.Engine
	signal  *auth.Signal
	session auth.SessionFile
	closers []io.Closer
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			rt.log.Warn("close_error", "error", err)
		}
	}
}

type action func(ctx context.Context, c *cli.Context, rt *runtime) error

// withRuntime wires the engine for one command and restores the stored
// session before the command runs.
func withRuntime(fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := newRuntime(c)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := logging.IntoContext(c.Context, rt.log)
		if id := rt.signal.Current(); id != nil {
			if _, err := rt.engine.Login(ctx, *id); err != nil {
				rt.log.Warn("cart_load_error", "error", err)
			}
		} else {
			_ = rt.engine.Load(ctx)
		}
		return fn(ctx, c, rt)
	}
}

func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, os.Stderr)

	rt := &runtime{
		cfg:     cfg,
		log:     log,
		session: auth.SessionFile{Path: cfg.SessionPath},
	}

	id, err := rt.session.Load()
	if err != nil {
		log.Warn("session_load_error", "error", err)
	}
	rt.signal = auth.NewSignal(id)

	if cfg.CartStore != "memory" {
		if err := os.MkdirAll(filepath.Dir(cfg.CartStorePath), 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := localstore.Open(cfg.CartStore, cfg.CartStorePath, log)
	if err != nil {
		return nil, err
	}
	if cl, ok := store.(io.Closer); ok {
		rt.closers = append(rt.closers, cl)
	}

	opts := []gateway.Option{gateway.WithTimeout(cfg.HTTPTimeout), gateway.WithLogger(log)}
	if cfg.RefreshEnabled() {
		refresher := gateway.NewValidateRefresher(cfg.APIBase+"/validate", cfg.ValidateEmail, cfg.ValidatePassword)
		opts = append(opts, gateway.WithTokenRefresher(refresher, rt.tokenRefreshed))
	}
	client := gateway.NewClient(cfg.APIBase, opts...)

	var pub cart.Publisher = mykafka.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, producer)
		pub = producer
	}

	rt.engine = cart.New(store, client,
		cart.WithLogger(log),
		cart.WithPublisher(pub, cfg.KafkaTopic),
		cart.WithMergeConcurrency(cfg.MergeConcurrency),
		cart.WithRetainFailedMergeLines(cfg.RetainFailedMergeLines),
	)
	return rt, nil
}

// tokenRefreshed moves the engine and the signal to the newest credential
// and saves it.
func (rt *runtime) tokenRefreshed(token string) {
	rt.engine.UpdateToken(token)
	rt.signal.UpdateToken(token)
	if err := rt.session.Save(rt.signal.Current()); err != nil {
		rt.log.Warn("session_save_error", "error", err)
	}
}
