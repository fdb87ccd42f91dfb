package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rental-process/internal/api"
	awsclient "rental-process/internal/common/aws"
	"rental-process/internal/common/camunda"
	"rental-process/internal/common/config"
	"rental-process/internal/common/database"
	"rental-process/internal/common/idcache"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/observability"
	"rental-process/internal/notify"
	"rental-process/internal/search"
	"rental-process/internal/store/processstore"
	"rental-process/internal/wizard"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the wizard HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			if migrate {
				cfg.Wizard.MigrateOnStart = true
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.WithError(err).Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func runServe(cfg *config.Config) error {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"env":     cfg.App.Environment,
	})

	zapLog.Info("Starting process manager...", zap.String("version", Version))

	obs := observability.New(cfg.Observability.ServiceName, nil, log)
	tp, err := observability.NewTracerProvider(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		log.WithError(err).Warn("tracing disabled", nil)
	}

	ctx := context.Background()
	checks := map[string]api.Check{}
	deps := wizard.Deps{
		Clock:         clockwork.NewRealClock(),
		Logger:        log,
		Observability: obs,
	}

	// --- Process store ---
	switch cfg.Wizard.Store {
	case config.StoreMemory:
		log.Warn("using in-memory process store, records are lost on restart", nil)
		deps.Store = processstore.NewMemoryStore()
	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return err
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		if cfg.Wizard.MigrateOnStart {
			if err := database.MigrateUp(ctx, pg.DB, log); err != nil {
				return err
			}
		}
		log.Debug("postgres pool", pg.PoolStats())
		deps.Store = processstore.NewPostgresStore(pg.DB, log)
		checks["postgres"] = pg.Ready
	}

	// --- Identifier cache ---
	if cfg.Database.Redis.Address != "" {
		redis := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error { return redis.Ping(ctx) }, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			return err
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
		deps.Cache = idcache.RedisFactory(redis.Client, cfg.Wizard.CacheNamespace, log)
		namespace := cfg.Wizard.CacheNamespace
		checks["redis"] = func(ctx context.Context) error { return redis.Writable(ctx, namespace) }
	} else {
		log.Warn("redis not configured, identifier cache is per process", nil)
		deps.Cache = idcache.MemoryFactory()
	}

	// --- Search ---
	if len(cfg.Database.Elasticsearch.GetAddresses()) > 0 {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			return err
		}
		zapLog.Info("Elasticsearch connected successfully")
		svc := search.NewService(es.Client, cfg.Search, log, obs)
		deps.Tenants = svc
		deps.Units = svc
		tenantIndex, unitIndex := cfg.Search.TenantIndex, cfg.Search.UnitIndex
		checks["elasticsearch"] = func(ctx context.Context) error {
			if err := es.Ping(ctx); err != nil {
				return err
			}
			return es.IndicesReady(ctx, tenantIndex, unitIndex)
		}
	} else {
		log.Warn("elasticsearch not configured, search views disabled", nil)
	}

	// --- Notifications ---
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		clients, err := awsclient.NewClients(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return fmt.Errorf("aws clients: %w", err)
		}
		deps.Notifier = notify.NewAWSNotifier(notify.Config{
			EmailEnabled: cfg.Notifications.Email.Enabled,
			SMSEnabled:   cfg.Notifications.SMS.Enabled,
			FromEmail:    cfg.Notifications.Email.FromEmail,
			SenderID:     cfg.Notifications.SMS.SenderID,
		}, clients.SES, clients.SNS, log)
	} else {
		deps.Notifier = notify.NewAWSNotifier(notify.Config{}, nil, nil, log)
	}

	// --- Review hand-off ---
	if cfg.Camunda.Enabled {
		var zc *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			return err
		}
		defer zc.Close()
		zapLog.Info("Zeebe client connected successfully")
		deps.Review = camunda.NewReviewStarter(zc, cfg.Camunda.ReviewProcessID, nil, log)
		checks["zeebe"] = zc.HealthCheck
	}

	registry := wizard.NewRegistry(deps, wizard.Options{
		Debounce:       config.GetDuration(cfg.Wizard.DebounceMs),
		WriteTimeout:   config.GetDuration(cfg.Wizard.WriteTimeoutMs),
		FetchTimeout:   config.GetDuration(cfg.Wizard.FetchTimeoutMs),
		SearchDebounce: config.GetDuration(cfg.Search.DebounceMs),
		SearchTimeout:  config.GetDuration(cfg.Search.TimeoutMs),
		AllowAutofill:  cfg.Wizard.AllowAutofill,
	})
	if cfg.Wizard.AllowAutofill {
		log.Warn("autofill enabled, do not use in production", nil)
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.New(registry, log, checks).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zapLog.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		zapLog.Error("HTTP server failed", zap.Error(err))
		registry.CloseAll()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	registry.FlushAll(shutdownCtx)
	registry.CloseAll()

	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("metrics shutdown failed", zap.Error(err))
	}
	if err := observability.ShutdownTracer(shutdownCtx, tp); err != nil {
		zapLog.Warn("tracer shutdown failed", zap.Error(err))
	}

	zapLog.Info("Process manager stopped")
	return nil
}
