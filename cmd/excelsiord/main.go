package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"excelsior/cmd/internal/passphrase"
	"excelsior/config"
	"excelsior/core"
	"excelsior/core/state"
	"excelsior/crypto"
	"excelsior/observability/logging"
	"excelsior/observability/otel"
	"excelsior/rpc"
	"excelsior/services/history"
)

const (
	serviceName     = "excelsiord"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *allowMigrateFlag); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, allowMigrate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := strings.TrimSpace(os.Getenv("EXCELSIOR_ENV"))
	if env == "" {
		env = cfg.Telemetry.Environment
	}
	logger := logging.Setup(serviceName, env, cfg.Log.Options())

	shutdownTelemetry, err := otel.Init(ctx, cfg.Telemetry.OtelConfig(serviceName))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	operator, err := loadOperator(cfg.OperatorKeystorePath, passphrase.NewSource(passphrase.DefaultEnv, "").Get)
	if err != nil {
		return fmt.Errorf("load operator key: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := state.EnsureStateVersion(db, allowMigrate || cfg.AllowMigrate); err != nil {
		return err
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithEconomics(cfg.Economics),
	}
	var events rpc.HistoryReader
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, core.WithEventSink(store))
		events = store
	}

	node, err := core.NewNode(db, opts...)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	server := rpc.NewServer(node, events, rpc.Config{
		JWTSecret:          cfg.RPC.JWTSecret(),
		JWTIssuer:          cfg.RPC.JWTIssuer,
		JWTAudience:        cfg.RPC.JWTAudience,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		TrustedProxies:     append([]string{}, cfg.RPC.TrustedProxies...),
	}, logger)
	if len(cfg.RPC.JWTSecret()) == 0 {
		logger.Warn("RPC secret not set; mutating methods will be rejected", slog.String("env", cfg.RPC.JWTSecretEnv))
	}

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           otelhttp.NewHandler(server.Handler(), "excelsior.rpc"),
		ReadTimeout:       cfg.RPC.ReadTimeout(),
		ReadHeaderTimeout: cfg.RPC.ReadTimeout(),
		WriteTimeout:      cfg.RPC.WriteTimeout(),
	}

	logger.Info("ledger node starting",
		slog.String("network", cfg.NetworkName),
		slog.String("backend", cfg.Backend),
		slog.String("rpc_address", cfg.RPCAddress),
		slog.String("operator", operator.String()),
		slog.Bool("history", cfg.History.Enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	logger.Info("ledger node stopped")
	return err
}

// loadOperator opens the operator keystore. Keystores written by the default
// configuration carry no passphrase; anything else asks pass for one.
func loadOperator(path string, pass func() (string, error)) (crypto.Address, error) {
	key, err := crypto.LoadFromKeystore(path, "")
	if err == nil {
		return key.PubKey().Address(), nil
	}
	secret, passErr := pass()
	if passErr != nil {
		return crypto.Address{}, errors.Join(err, passErr)
	}
	key, err = crypto.LoadFromKeystore(path, secret)
	if err != nil {
		return crypto.Address{}, err
	}
	return key.PubKey().Address(), nil
}
