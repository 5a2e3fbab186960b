// Command chronovault runs the Arctic Hub as a standalone process: it
// dials MongoDB, brings up the library registry, and serves Prometheus
// metrics until terminated.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronovault/internal/authprovider"
	"chronovault/internal/config"
	configmem "chronovault/internal/config/memory"
	configmongo "chronovault/internal/config/mongostore"
	"chronovault/internal/hub"
	"chronovault/internal/hub/mongobackend"
	"chronovault/internal/logging"
	"chronovault/internal/sysmetrics"
)

var versionString = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	var (
		mongoURI    string
		metricsAddr string
		username    string
		password    string
		configDB    string
	)

	rootCmd := &cobra.Command{
		Use:     "chronovault",
		Short:   "Versioned time-series and tick-data store over MongoDB",
		Version: versionString,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), logger, runOptions{
				mongoURI:    mongoURI,
				metricsAddr: metricsAddr,
				username:    username,
				password:    password,
				configDB:    configDB,
			})
		},
	}
	rootCmd.Flags().StringVar(&mongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	rootCmd.Flags().StringVar(&username, "mongo-username", "", "MongoDB username (empty uses URI credentials)")
	rootCmd.Flags().StringVar(&password, "mongo-password", "", "MongoDB password")
	rootCmd.Flags().StringVar(&configDB, "config-db", "", "database.collection to persist bootstrap config in; empty keeps config in-memory only")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("chronovault exited with error", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	mongoURI, metricsAddr, username, password, configDB string
}

func run(ctx context.Context, logger *slog.Logger, opts runOptions) error {
	var auth authprovider.Provider
	if opts.username != "" {
		auth = authprovider.Static(opts.username, opts.password)
	}
	var authCache *authprovider.Cache
	if auth != nil {
		authCache = authprovider.NewCache(auth, logger)
		auth = authCache
	}

	backend, err := mongobackend.New(ctx, opts.mongoURI, auth)
	if err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}

	var cfgStore config.Store = configmem.NewStore()
	if opts.configDB != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.mongoURI))
		if err != nil {
			return fmt.Errorf("connect config store: %w", err)
		}
		dbName, collName := splitDBColl(opts.configDB)
		cfgStore = configmongo.New(client.Database(dbName).Collection(collName))
	}

	h, err := hub.New(ctx, backend, hub.Options{
		ConfigStore: cfgStore,
		Auth:        authCache,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build hub: %w", err)
	}
	_ = h // the hub is driven by an RPC/embedding layer outside this entrypoint's scope

	go sysmetrics.Reporter{Interval: 30 * time.Second}.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", opts.metricsAddr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

func splitDBColl(s string) (db, coll string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i], s[i+1:]
		}
	}
	return s, "config"
}
