package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pixelforge-ai/pixelforge/internal/config"
	"github.com/pixelforge-ai/pixelforge/internal/credit"
	"github.com/pixelforge-ai/pixelforge/internal/engine"
	"github.com/pixelforge-ai/pixelforge/internal/logging"
	"github.com/pixelforge-ai/pixelforge/internal/provider"
	"github.com/pixelforge-ai/pixelforge/internal/server"
	"github.com/pixelforge-ai/pixelforge/internal/store"
	"github.com/pixelforge-ai/pixelforge/internal/tool"
	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

var (
	servePort      int
	serveDirectory string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PixelForge HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVarP(&serveDirectory, "directory", "d", "", "Directory to load configuration from")
}

func runServe() error {
	_ = godotenv.Load()

	directory := serveDirectory
	if directory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		directory = wd
	}

	cfg, err := config.Load(directory)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logging.Init(logging.Config{
		Level:  logging.ParseLevel(level),
		Pretty: true,
	})

	ctx := context.Background()

	st, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	meter := newMeter(cfg)

	providers, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		return err
	}

	tools := tool.DefaultRegistry(cfg.Tools)

	orch := engine.New(st, tools, meter, providers, engine.Config{})

	srvCfg := server.DefaultConfig()
	if cfg.Server.Port > 0 {
		srvCfg.Port = cfg.Server.Port
	}
	if servePort > 0 {
		srvCfg.Port = servePort
	}
	srvCfg.EnableCORS = !cfg.Server.DisableCORS

	srv := server.New(srvCfg, st, orch, providers, tools)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", srvCfg.Port).Msg("server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown failed")
		return err
	}

	logging.Info().Msg("server stopped")
	return nil
}

// newStore selects the session store backend from config.
func newStore(ctx context.Context, cfg *types.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemory(), nil
	case "redis":
		return store.NewRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newMeter selects the credit meter. Without a ledger URL an in-process
// meter is used, intended for local development only.
func newMeter(cfg *types.Config) credit.Meter {
	if cfg.Ledger.URL == "" {
		logging.Warn().Msg("no credit ledger configured, using in-process meter")
		return credit.NewMemoryMeter()
	}
	timeout := time.Duration(cfg.Ledger.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return credit.NewLedger(cfg.Ledger.URL, cfg.Ledger.APIKey, timeout)
}
