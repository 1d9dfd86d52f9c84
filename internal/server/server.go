package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/chainstatus"
	"github.com/dwarvesf/paylink-backend/internal/consts"
	"github.com/dwarvesf/paylink-backend/internal/handler"
	"github.com/dwarvesf/paylink-backend/internal/handler/metrics"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	"github.com/dwarvesf/paylink-backend/internal/oracle"
	"github.com/dwarvesf/paylink-backend/internal/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/queue"
	"github.com/dwarvesf/paylink-backend/internal/realtime"
	"github.com/dwarvesf/paylink-backend/internal/settlement"
	"github.com/dwarvesf/paylink-backend/internal/store"
	pgstore "github.com/dwarvesf/paylink-backend/internal/store/postgres"
	"github.com/dwarvesf/paylink-backend/internal/telemetry"
	httptransport "github.com/dwarvesf/paylink-backend/internal/transport/http"
	"github.com/dwarvesf/paylink-backend/internal/transport/ws"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
	"github.com/dwarvesf/paylink-backend/internal/utils/vault"
	"github.com/dwarvesf/paylink-backend/internal/utils/webhook"
	"github.com/dwarvesf/paylink-backend/internal/wallet"
)

const shutdownTimeout = 30 * time.Second

// app holds the dependencies shared by the api and worker roles.
type app struct {
	config *config.AppConfig
	logger *logger.Logger
	db     *gorm.DB
	redis  redis.UniversalClient
	store  *store.Store

	chainRPC chainrpc.IChainRPC
	wallets  *wallet.Manager
	fanout   *realtime.Fanout

	httpMetrics       *monitoring.HTTPMetrics
	externalMetrics   *monitoring.ExternalAPIMetrics
	settlementMetrics *monitoring.SettlementMetrics
	realtimeMetrics   *monitoring.RealtimeMetrics
	jobMetrics        *monitoring.BackgroundJobMetrics
	registry          *prometheus.Registry
}

func newApp(appConfig *config.AppConfig, logger *logger.Logger) (*app, error) {
	a := &app{
		config:            appConfig,
		logger:            logger,
		httpMetrics:       monitoring.NewHTTPMetrics(),
		externalMetrics:   monitoring.NewExternalAPIMetrics(),
		settlementMetrics: monitoring.NewSettlementMetrics(),
		realtimeMetrics:   monitoring.NewRealtimeMetrics(),
		jobMetrics:        monitoring.NewBackgroundJobMetrics(),
	}
	a.registry = metrics.NewRegistry(
		a.httpMetrics,
		a.externalMetrics,
		a.settlementMetrics,
		a.realtimeMetrics,
		a.jobMetrics,
	)

	a.db = pgstore.New(appConfig, logger)
	a.store = store.New(a.db)
	a.redis = NewRedisClient(appConfig.Redis)

	rpc, err := chainrpc.New(appConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("init chain rpc: %w", err)
	}
	a.chainRPC = monitoring.NewCircuitBreakerChainRPC(rpc, monitoring.CircuitBreakerConfigs["chain_rpc"], a.externalMetrics, logger)

	secret, err := walletSecret(appConfig)
	if err != nil {
		return nil, err
	}
	a.wallets, err = wallet.New(secret, wallet.NewStoreChecker(a.db, a.store.PaymentLink), appConfig.Wallet.MaxAttempts, logger)
	if err != nil {
		return nil, fmt.Errorf("init wallet manager: %w", err)
	}

	return a, nil
}

// NewRedisClient connects to the redis shared by the realtime registry,
// the event channel and the job queue.
func NewRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func walletSecret(appConfig *config.AppConfig) (string, error) {
	if appConfig.Vault.Addr == "" {
		return wallet.ResolveSecret(appConfig.Wallet, nil)
	}
	vc, err := vault.New(appConfig.Vault)
	if err != nil {
		return "", fmt.Errorf("init vault client: %w", err)
	}
	return wallet.ResolveSecret(appConfig.Wallet, vc)
}

func (a *app) close() {
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("[Server][Close] failed to close redis", map[string]string{"error": err.Error()})
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// RunAPI serves the HTTP API and websocket endpoint, relays realtime events
// published by any process and runs the cron jobs. It returns when ctx is
// cancelled or one of them fails.
func RunAPI(ctx context.Context, appConfig *config.AppConfig, logger *logger.Logger) error {
	a, err := newApp(appConfig, logger)
	if err != nil {
		return err
	}
	defer a.close()

	registry := realtime.NewRegistry(a.redis, appConfig.Realtime)
	authenticator := realtime.NewJWTAuthenticator(appConfig.Realtime.JWTSecret)
	hub := realtime.NewHub(
		registry,
		realtime.NewRateLimiter(a.redis, appConfig.Realtime),
		authenticator,
		realtime.NewStoreOwnershipChecker(a.db, a.store),
		a.realtimeMetrics,
		logger,
	)
	a.fanout = realtime.NewFanout(a.redis, appConfig.Realtime.Channel, hub, a.realtimeMetrics, logger)

	priceOracle := monitoring.NewCircuitBreakerOracle(
		oracle.New(appConfig, logger),
		monitoring.CircuitBreakerConfigs["price_oracle"],
		a.externalMetrics,
		logger,
	)
	chains := chainstatus.New(a.db, a.store.ChainStatus, chainIDs(appConfig), logger)
	paymentLinks := paymentlink.New(a.db, a.store, a.wallets, chains, priceOracle, realtime.NewNotifier(a.fanout), appConfig, logger)

	queueClient := queue.NewClient(queue.RedisOpt(appConfig.Redis), appConfig.Settlement, logger)
	defer queueClient.Close()

	deposits := telemetry.New(a.db, a.store, appConfig, logger, a.chainRPC, chains, a.redis, queueClient)

	jsm := monitoring.NewJobStatusManager(logger, a.jobMetrics)
	scheduler, err := a.schedule(jsm, paymentLinks, deposits)
	if err != nil {
		return err
	}

	engine := httptransport.NewHttpServer(appConfig, logger, httptransport.Options{
		Services: handler.Services{
			DB:               a.db,
			Redis:            a.redis,
			PaymentLinks:     paymentLinks,
			Chains:           chains,
			ChainRPC:         a.chainRPC,
			Settlements:      queueClient,
			JobStatusManager: jsm,
			MetricsRegistry:  a.registry,
			BusinessMetrics:  monitoring.NewBusinessMetricsRecorder(a.httpMetrics),
		},
		Websocket:     ws.NewHandler(hub, appConfig.AllowedOrigins(), logger).Serve,
		Authenticator: authenticator,
		Bans:          registry,
		HTTPMetrics:   a.httpMetrics,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(ctx, engine, appConfig.ApiServer.Port, logger)
	})
	g.Go(func() error {
		return a.fanout.Run(ctx)
	})
	g.Go(func() error {
		jsm.Run(ctx)
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-ctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	logger.Info("[Server][RunAPI] api started", map[string]string{
		"port": appConfig.ApiServer.Port,
	})
	return g.Wait()
}

// RunWorker consumes settlement jobs. /healthz and /metrics are served on
// the api port so the worker can be probed and scraped.
func RunWorker(ctx context.Context, appConfig *config.AppConfig, logger *logger.Logger) error {
	a, err := newApp(appConfig, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// the worker only publishes; delivery happens in api processes
	a.fanout = realtime.NewFanout(a.redis, appConfig.Realtime.Channel, nil, a.realtimeMetrics, logger)

	processor := settlement.New(
		a.db,
		a.store,
		appConfig,
		a.chainRPC,
		a.wallets,
		settlement.NewChainFeeEstimator(a.chainRPC, appConfig.Settlement.PlatformFeeBps),
		realtime.NewNotifier(a.fanout),
		a.settlementMetrics,
		logger,
	)
	worker := queue.NewServer(queue.RedisOpt(appConfig.Redis), appConfig.Settlement, processor, logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	engine.GET("/metrics", metrics.NewMetricsHandler(a.registry).Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		return serveHTTP(ctx, engine, appConfig.ApiServer.Port, logger)
	})

	logger.Info("[Server][RunWorker] worker started", map[string]string{
		"concurrency": fmt.Sprintf("%d", appConfig.Settlement.Concurrency),
	})
	return g.Wait()
}

func (a *app) schedule(jsm *monitoring.JobStatusManager, paymentLinks paymentlink.IService, deposits telemetry.ITelemetry) (*cron.Cron, error) {
	c := cron.New()

	expiry := monitoring.NewInstrumentedJob(
		consts.JobNameExpirePaymentLinks,
		expireJob(paymentLinks, a.pendingCount, a.jobMetrics, a.logger),
		jsm,
		a.logger,
		time.Minute,
	)
	if _, err := c.AddFunc(a.config.Cron.ExpirySpec, expiry.Execute); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", consts.JobNameExpirePaymentLinks, err)
	}

	indexer := monitoring.NewInstrumentedJob(
		consts.JobNameIndexDeposits,
		deposits.IndexDeposits,
		jsm,
		a.logger,
		2*time.Minute,
	)
	if _, err := c.AddFunc(a.config.Cron.DepositSpec, indexer.Execute); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", consts.JobNameIndexDeposits, err)
	}

	if a.config.Cron.UptimeWebhookURL != "" {
		uptime := monitoring.NewInstrumentedJob(
			consts.JobNameUptimeHeartbeat,
			a.ping,
			jsm,
			a.logger,
			30*time.Second,
			monitoring.WithUptimeWebhook(webhook.New(a.logger), a.config.Cron.UptimeWebhookURL),
		)
		if _, err := c.AddFunc(a.config.Cron.UptimeSpec, uptime.Execute); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", consts.JobNameUptimeHeartbeat, err)
		}
	}

	return c, nil
}

// ping fails the uptime heartbeat when a backing service is unreachable,
// so the webhook is only called while the api is usable.
func (a *app) ping(ctx context.Context) error {
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, engine http.Handler, port string, logger *logger.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("[Server][serveHTTP] shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func chainIDs(appConfig *config.AppConfig) []uint64 {
	ids := make([]uint64, 0, len(appConfig.Blockchain.Chains))
	for _, chain := range appConfig.Blockchain.Chains {
		ids = append(ids, chain.ID)
	}
	return ids
}
