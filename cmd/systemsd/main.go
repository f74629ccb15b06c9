// Command systemsd runs the systems registry daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridpath/systems"
	"github.com/gridpath/systems/kit/cli"
	"github.com/gridpath/systems/logger"
	"github.com/gridpath/systems/security"
	"github.com/gridpath/systems/service"
	"github.com/gridpath/systems/sqlite"
	"github.com/gridpath/systems/sqlite/migrations"
	"github.com/gridpath/systems/store"
)

type config struct {
	httpAddr string

	logFormat string
	logLevel  zapcore.Level

	sqlitePath string

	delegateURL     string
	delegateToken   string
	delegateTimeout time.Duration

	vaultAddr  string
	vaultToken string
}

func main() {
	var cfg config

	prog := &cli.Program{
		Name: "systemsd",
		Opts: []cli.Opt{
			cli.NewOpt(&cfg.httpAddr, "http-bind-address", ":8080", "address the HTTP server listens on"),
			cli.NewOpt(&cfg.logFormat, "log-format", "auto", "log encoding, one of auto, console, json"),
			cli.NewOpt(&cfg.logLevel, "log-level", zapcore.InfoLevel, "minimum log level"),
			cli.NewOpt(&cfg.sqlitePath, "sqlite-path", "systems.db", "path to the registry database file"),
			cli.NewOpt(&cfg.delegateURL, "security-url", "http://localhost:9090/v3", "base URL of the security delegate"),
			cli.NewOpt(&cfg.delegateToken, "security-token", "", "bearer token for the security delegate"),
			cli.NewOpt(&cfg.delegateTimeout, "security-timeout", 30*time.Second, "security delegate request timeout"),
			cli.NewOpt(&cfg.vaultAddr, "vault-addr", "", "vault address, defaults to VAULT_ADDR"),
			cli.NewOpt(&cfg.vaultToken, "vault-token", "", "vault token, defaults to VAULT_TOKEN"),
		},
	}
	prog.Run = func() error {
		return run(cfg)
	}

	if err := cli.NewCommand(prog).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	logConf := logger.Config{
		Format: cfg.logFormat,
		Level:  cfg.logLevel,
	}
	log, err := logConf.New(os.Stdout)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := sqlite.NewSqlStore(cfg.sqlitePath, log.With(zap.String("service", "sqlite")))
	if err != nil {
		return fmt.Errorf("opening registry database: %w", err)
	}
	defer db.Close()

	migrator := sqlite.NewMigrator(db, log.With(zap.String("service", "sqlite migrations")))
	if err := migrator.Up(ctx, migrations.All); err != nil {
		return fmt.Errorf("bringing up registry migrations: %w", err)
	}

	var vaultOpts []security.VaultOptFn
	if cfg.vaultAddr != "" || cfg.vaultToken != "" {
		vaultOpts = append(vaultOpts, security.WithVaultConfig(security.VaultConfig{
			Address: cfg.vaultAddr,
			Token:   cfg.vaultToken,
		}))
	}
	secrets, err := security.NewSecretStore(vaultOpts...)
	if err != nil {
		return fmt.Errorf("connecting to vault: %w", err)
	}

	delegate, err := security.NewClient(security.ClientConfig{
		BaseURL: cfg.delegateURL,
		Token:   cfg.delegateToken,
		Timeout: cfg.delegateTimeout,
	}, secrets)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	systemStore := store.NewStore(db, log.With(zap.String("service", "system store")))

	var svc systems.SystemsService = service.NewService(
		log.With(zap.String("service", "systems")), systemStore, delegate)
	svc = service.NewLoggingService(log.With(zap.String("service", "systems")), svc)
	svc = service.NewMetricsService(reg, svc)

	// Public API routing lives in the gateway process; systemsd serves the
	// registry service plus ops endpoints.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.DB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, `{"status":"fail"}`)
			return
		}
		fmt.Fprintln(w, `{"status":"pass"}`)
	})
	mux.Handle("/api/v3/systems/", newRPCHandler(log, svc))

	srv := &http.Server{
		Addr:    cfg.httpAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", zap.String("addr", cfg.httpAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
