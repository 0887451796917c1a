// Package bootstrap wires every adapter, service, and background app into
// the process's launcher.Launcher (§6's configuration contract), modeled on
// the teacher's cmd/app bootstrap pattern.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/banktrail/ingestor/internal/adapters/http/in"
	"github.com/banktrail/ingestor/internal/adapters/mongodb"
	"github.com/banktrail/ingestor/internal/adapters/postgres/account"
	"github.com/banktrail/ingestor/internal/adapters/postgres/audit"
	"github.com/banktrail/ingestor/internal/adapters/postgres/bankingcredential"
	"github.com/banktrail/ingestor/internal/adapters/postgres/connection"
	"github.com/banktrail/ingestor/internal/adapters/postgres/cursor"
	"github.com/banktrail/ingestor/internal/adapters/postgres/healthmetric"
	"github.com/banktrail/ingestor/internal/adapters/postgres/historyevent"
	"github.com/banktrail/ingestor/internal/adapters/postgres/ingestionjob"
	"github.com/banktrail/ingestor/internal/adapters/postgres/provideraccount"
	"github.com/banktrail/ingestor/internal/adapters/postgres/providertoken"
	"github.com/banktrail/ingestor/internal/adapters/postgres/rawtransaction"
	"github.com/banktrail/ingestor/internal/adapters/postgres/tenant"
	"github.com/banktrail/ingestor/internal/adapters/postgres/transaction"
	"github.com/banktrail/ingestor/internal/adapters/rabbitmq"
	"github.com/banktrail/ingestor/internal/adapters/redis"
	"github.com/banktrail/ingestor/internal/engine"
	"github.com/banktrail/ingestor/internal/health"
	"github.com/banktrail/ingestor/internal/platform/launcher"
	"github.com/banktrail/ingestor/internal/platform/mlog"
	"github.com/banktrail/ingestor/internal/platform/mmongo"
	"github.com/banktrail/ingestor/internal/platform/mopentelemetry"
	"github.com/banktrail/ingestor/internal/platform/mpostgres"
	"github.com/banktrail/ingestor/internal/platform/mrabbitmq"
	"github.com/banktrail/ingestor/internal/platform/mredis"
	"github.com/banktrail/ingestor/internal/platform/mzap"
	"github.com/banktrail/ingestor/internal/provider"
	"github.com/banktrail/ingestor/internal/reconnect"
	"github.com/banktrail/ingestor/internal/scheduler"
	"github.com/banktrail/ingestor/internal/services/command"
	"github.com/banktrail/ingestor/internal/services/query"
	"github.com/banktrail/ingestor/internal/vault"
)

// App holds every wired component the process entrypoint needs: the
// launcher to run, plus the pieces a management command (migrations,
// one-off scripts) might want directly.
type App struct {
	Launcher   *launcher.Launcher
	Logger     mlog.Logger
	Telemetry  *mopentelemetry.Telemetry
	Command    *command.Service
	Query      *query.Service
	Dispatcher *scheduler.Dispatcher
	Registry   *provider.Registry
}

// Start wires every adapter and service, registers the HTTP server (which
// also serves the scheduler's tick endpoint), the event consumer, and the
// gRPC health server as launcher Apps, and returns the assembled App without starting it — call
// a.Launcher.Run() to actually run.
func Start(cfg Config) (*App, error) {
	logger, err := mzap.InitializeLoggerWithError()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}

	telemetry := &mopentelemetry.Telemetry{
		ServiceName:               cfg.ServiceName,
		ServiceVersion:            cfg.ServiceVersion,
		DeploymentEnv:             cfg.Environment,
		CollectorExporterEndpoint: cfg.OTelCollectorEndpoint,
	}

	if _, err := telemetry.InitializeTelemetry(); err != nil {
		return nil, fmt.Errorf("bootstrap: telemetry: %w", err)
	}

	pg := &mpostgres.PostgresConnection{
		ConnectionStringPrimary: cfg.PostgresPrimaryDSN,
		ConnectionStringReplica: cfg.PostgresReplicaDSN,
		PrimaryDBName:           cfg.PostgresDBName,
		MigrationsPath:          cfg.MigrationsPath,
		Logger:                  logger,
	}
	if err := pg.Connect(); err != nil {
		return nil, fmt.Errorf("bootstrap: postgres: %w", err)
	}

	ctx := context.Background()

	rc := &mredis.RedisConnection{ConnectionStringSource: cfg.RedisDSN, Logger: logger}
	if err := rc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: redis: %w", err)
	}

	mq := &mrabbitmq.RabbitMQConnection{ConnectionStringSource: cfg.RabbitMQDSN, Logger: logger}
	if err := mq.Connect(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: rabbitmq: %w", err)
	}

	mg := &mmongo.MongoConnection{ConnectionStringSource: cfg.MongoDSN, Database: cfg.MongoDatabase, Logger: logger}
	if err := mg.Connect(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: mongo: %w", err)
	}

	connectionsRepo := connection.NewPostgreSQLRepository(pg)
	accountsRepo := account.NewPostgreSQLRepository(pg)
	transactionsRepo := transaction.NewPostgreSQLRepository(pg)
	providerAccountsRepo := provideraccount.NewPostgreSQLRepository(pg)
	rawTransactionsRepo := rawtransaction.NewPostgreSQLRepository(pg)
	cursorsRepo := cursor.NewPostgreSQLRepository(pg)
	jobsRepo := ingestionjob.NewPostgreSQLRepository(pg)
	tenantsRepo := tenant.NewPostgreSQLRepository(pg)
	auditRepo := audit.NewPostgreSQLRepository(pg)
	historyRepo := historyevent.NewPostgreSQLRepository(pg)
	healthMetricsRepo := healthmetric.NewPostgreSQLRepository(pg)
	tokensRepo := providertoken.NewPostgreSQLRepository(pg)
	credsRepo := bankingcredential.NewPostgreSQLRepository(pg)

	metadataRepo := mongodb.NewMongoDBRepository(mg)

	leases := redis.NewRedisLeaseRepository(rc)
	oauthStates := redis.NewRedisOAuthStateRepository(rc)

	registry := provider.NewRegistry()

	for _, p := range cfg.Providers {
		registerProvider(registry, p)
	}

	rateLimiters := provider.NewRateLimiters(cfg.ProviderRateLimits(), cfg.ProviderRateLimitBurst())

	vaultKey, err := vault.KeyFromHex(cfg.VaultKeyHex)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: vault key: %w", err)
	}

	v, err := vault.New(vaultKey, tokensRepo, credsRepo, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: vault: %w", err)
	}

	events := rabbitmq.NewProducer(mq, logger)

	eng := engine.New(engine.Deps{
		Connections:      connectionsRepo,
		Accounts:         accountsRepo,
		ProviderAccounts: providerAccountsRepo,
		Transactions:     transactionsRepo,
		RawTransactions:  rawTransactionsRepo,
		Cursors:          cursorsRepo,
		Jobs:             jobsRepo,
		Vault:            v,
		Registry:         registry,
		RateLimiters:     rateLimiters,
		Events:           events,
		Logger:           logger,
	})

	detector := reconnect.New(reconnect.Deps{
		Accounts:     accountsRepo,
		Connections:  connectionsRepo,
		Transactions: transactionsRepo,
		Cursors:      cursorsRepo,
		History:      historyRepo,
		Registry:     registry,
		Logger:       logger,
	})

	healthAggregator := health.NewAggregator(health.Deps{
		Connections: connectionsRepo,
		Jobs:        jobsRepo,
		Metrics:     healthMetricsRepo,
		Logger:      logger,
	})

	dispatcher := scheduler.New(scheduler.Deps{
		Connections:    connectionsRepo,
		Leases:         leases,
		Engine:         eng,
		Health:         healthAggregator,
		Logger:         logger,
		TickDeadline:   cfg.TickDeadline,
		RunDeadline:    cfg.RunDeadline,
		BatchLimit:     cfg.TickBatchLimit,
		MaxConcurrency: cfg.TickConcurrency,
	})

	cmdService := command.New(command.Deps{
		Accounts:     accountsRepo,
		Connections:  connectionsRepo,
		Transactions: transactionsRepo,
		Tenants:      tenantsRepo,
		Jobs:         jobsRepo,
		Audit:        auditRepo,
		Metadata:     metadataRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	qrySvc := query.New(query.Deps{
		Accounts:     accountsRepo,
		Connections:  connectionsRepo,
		Transactions: transactionsRepo,
		Tenants:      tenantsRepo,
		Jobs:         jobsRepo,
		History:      historyRepo,
		Audit:        auditRepo,
		Metadata:     metadataRepo,
		Logger:       logger,
	})

	fiberApp := fiber.New(fiber.Config{DisableStartupMessage: true})

	router := &in.Router{
		TickSecret:  cfg.TickSecret,
		TickHandler: &in.TickHandler{Dispatcher: dispatcher},
		OAuthCallback: &in.OAuthCallbackHandler{Deps: in.OAuthCallbackDeps{
			OAuthStates: oauthStates,
			Connections: connectionsRepo,
			Vault:       v,
			Registry:    registry,
			Detector:    detector,
			Dispatcher:  dispatcher,
			Logger:      logger,
		}},
	}
	router.Register(fiberApp)

	l := launcher.New(logger)
	l.Add("http", &httpApp{app: fiberApp, addr: cfg.HTTPAddr, conn: pg, redisConn: rc, mongoConn: mg})
	l.Add("rabbitmq-consumer", &consumerApp{consumer: rabbitmq.NewConsumer(mq, healthAggregator, logger)})
	l.Add("grpc-health", newGRPCApp(cfg.GRPCAddr, logger))

	return &App{
		Launcher:   l,
		Logger:     logger,
		Telemetry:  telemetry,
		Command:    cmdService,
		Query:      qrySvc,
		Dispatcher: dispatcher,
		Registry:   registry,
	}, nil
}

func registerProvider(registry *provider.Registry, p ProviderConfig) {
	switch p.IntegrationType {
	case "oauth_redirect":
		registry.Register(provider.NewOAuthAggregatorAdapter(p.ProviderID, p.DisplayName, p.BaseURL, p.AuthURL, p.ClientID, p.ClientSecret))
	case "direct_credentials":
		registry.Register(provider.NewDirectBankAdapter(p.ProviderID, p.DisplayName, p.BaseURL))
	}
}
