package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/perfume_shop/internal/cartapi"
	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/pkg/config"
	"github.com/Skotchmaster/perfume_shop/pkg/db"
	loggingmw "github.com/Skotchmaster/perfume_shop/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("env file not loaded, using process environment")
	}
	cfg := config.Load()
	logger := logging.New(config.EnvDefault("LOG_LEVEL", "info"), os.Stdout).With("service", cfg.ServiceName)

	if err := cfg.Validate(); err != nil {
		logger.Error("config_error", "error", err)
		os.Exit(1)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Error("db_init_error", "error", err)
		os.Exit(1)
	}
	if err := cartapi.AutoMigrate(gdb); err != nil {
		logger.Error("db_migrate_error", "error", err)
		os.Exit(1)
	}

	repo := &cartapi.GormRepo{DB: gdb}
	if path := os.Getenv("CATALOG_SEED"); path != "" {
		if err := seedCatalog(repo, path); err != nil {
			logger.Error("catalog_seed_error", "path", path, "error", err)
			os.Exit(1)
		}
		logger.Info("catalog_seeded", "path", path)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(middleware.CORS())

	cartapi.Register(e, &cartapi.Deps{
		CartHandler: &cartapi.CartHTTP{Svc: &cartapi.CartService{Repo: repo}},
		AuthHandler: &cartapi.AuthHTTP{Svc: &cartapi.AuthService{
			Email:        cfg.APIEmail,
			PasswordHash: cfg.APIPasswordHash,
			Secret:       cfg.JWTSecret,
			TTL:          time.Duration(cfg.TokenTTLMinutes) * time.Minute,
		}},
		JWTSecret: cfg.JWTSecret,
		DB:        gdb,
	})

	addr := ":" + strconv.Itoa(cfg.ServerPort)
	go func() {
		logger.Info("server_starting", "addr", addr, "db_driver", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_start_error", "error", err)
			os.Exit(1)
		}
	}()

	stop, stopCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopCancel()
	<-stop.Done()
	logger.Info("server_stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server_stopped")
}

// seedCatalog loads a JSON array of products into the catalog table.
func seedCatalog(repo *cartapi.GormRepo, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var products []cartapi.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i := range products {
		if err := repo.UpsertProduct(ctx, &products[i]); err != nil {
			return fmt.Errorf("product %q: %w", products[i].ID, err)
		}
	}
	return nil
}
