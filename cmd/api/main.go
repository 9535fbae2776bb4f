package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"agri-advance/internal/adapter/eligibility"
	httpadp "agri-advance/internal/adapter/http"
	"agri-advance/internal/adapter/middleware"
	"agri-advance/internal/adapter/notify"
	"agri-advance/internal/adapter/orders"
	"agri-advance/internal/adapter/proof"
	repo "agri-advance/internal/adapter/repository/mysql"
	"agri-advance/internal/config"
	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/uow"
	"agri-advance/internal/infrastructure/cache"
	"agri-advance/internal/infrastructure/db"
	"agri-advance/internal/infrastructure/lock"
	"agri-advance/internal/infrastructure/metrics"
	"agri-advance/internal/usecase/lifecycle"
	"agri-advance/internal/usecase/liquidity"
)

const requeueBatch = 200

type publisher interface {
	advance.Publisher
	Close() error
}

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg.App.LogLevel).With("app", cfg.App.Name)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := cache.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx := metrics.New(strings.ReplaceAll(cfg.App.Name, "-", "_"))
	if err := mx.Register(reg); err != nil {
		return err
	}

	// repositories
	advances := repo.NewAdvanceRepository(gdb)
	tx := repo.NewGormUoW(gdb)
	locker := newLocker(cfg, rdb)

	manager := liquidity.NewManager(repo.NewPoolRepository(gdb), repo.NewReservationRepository(gdb), tx, locker,
		liquidity.WithReservationTTL(cfg.Pool.ReservationTTL),
		liquidity.WithSweepBatch(cfg.Pool.SweepBatch),
		liquidity.WithLogger(log),
		liquidity.WithMetrics(mx),
		liquidity.WithExpiryHook(lifecycle.RejectExpired),
	)
	p, err := manager.EnsurePool(ctx, liquidity.CreatePoolInput{
		PoolID:   cfg.Pool.ID,
		Name:     cfg.App.Name,
		Currency: cfg.Pool.Currency,
		Capital:  cfg.Pool.SeedCapital,
	})
	if err != nil {
		return err
	}
	log.Info("liquidity pool ready", "pool_id", p.PoolID, "available", p.AvailableBalance.String())

	orderReader, err := newOrderReader(cfg)
	if err != nil {
		return err
	}

	pub, err := newPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	deps := lifecycle.Deps{
		Advances:   advances,
		History:    repo.NewHistoryRepository(gdb),
		Repayments: repo.NewRepaymentRepository(gdb),
		Tx:         tx,
		Liquidity:  manager,
		Locker:     locker,
		Gate:       newGate(cfg),
		Orders:     orderReader,
		Publisher:  pub,
		PoolID:     cfg.Pool.ID,
		Policy:     newPolicy(cfg),
	}

	var worker *proof.Worker
	if cfg.Proof.URL != "" {
		worker = proof.NewWorker(
			proof.NewHTTPRecorder(cfg.Proof.URL, cfg.Proof.APIKey, cfg.Proof.CallTimeout),
			advances, cfg.Proof.QueueSize,
			proof.WithCallTimeout(cfg.Proof.CallTimeout),
			proof.WithRetry(cfg.Proof.MaxTries, cfg.Proof.InitialBackoff, cfg.Proof.MaxBackoff),
			proof.WithLogger(log),
			proof.WithMetrics(mx),
		)
		deps.Proofs = worker
	} else {
		log.Warn("PROOF_URL not set; disbursements stay PENDING verification")
	}

	svc := lifecycle.NewService(deps,
		lifecycle.WithGateTimeout(cfg.Gate.Timeout),
		lifecycle.WithNotifyTimeout(cfg.Notify.Timeout),
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(mx),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Recover(), middleware.RequestLogger(log))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpadp.Register(e, httpadp.Routes{
		Health:      httpadp.NewHandler(sqlDB),
		Advances:    httpadp.NewAdvanceHandler(svc),
		Pools:       httpadp.NewPoolHandler(manager),
		Auth:        httpadp.Auth([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer),
		Idempotency: middleware.Idempotency(rdb, cfg.Redis.IdempotencyTTL, httpadp.ActorIDKey),
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http listening", "addr", cfg.Addr())
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(sctx)
	})

	g.Go(func() error { return manager.RunSweeper(ctx, cfg.Pool.SweepInterval) })

	if worker != nil {
		g.Go(func() error { return worker.Run(ctx) })
		g.Go(func() error { return worker.RunRequeue(ctx, advances, cfg.Proof.RequeueEvery, requeueBatch) })
	}

	return g.Wait()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newLocker(cfg *config.Config, rdb *redis.Client) uow.Locker {
	if cfg.Lock.Distributed {
		return lock.NewRedis(rdb, cfg.Lock.TTL, cfg.Lock.Retry, cfg.Lock.Attempts)
	}
	return lock.NewLocal(cfg.Lock.Wait)
}

func newGate(cfg *config.Config) advance.EligibilityGate {
	if cfg.Gate.URL != "" {
		return eligibility.NewHTTPGate(cfg.Gate.URL, cfg.Gate.Timeout)
	}
	slog.Warn("ELIGIBILITY_URL not set; using static credit limit", "limit", cfg.Gate.StaticLimit.String())
	return eligibility.Static{CreditLimit: cfg.Gate.StaticLimit, RiskTier: cfg.Gate.StaticTier, Rate: cfg.Gate.StaticRate}
}

func newOrderReader(cfg *config.Config) (advance.OrderReader, error) {
	switch {
	case cfg.Orders.URL != "":
		return orders.NewHTTPReader(cfg.Orders.URL, cfg.Orders.Timeout), nil
	case cfg.Orders.File != "":
		return orders.LoadFile(cfg.Orders.File)
	default:
		slog.Warn("no order source configured; every order lookup will fail")
		return orders.NewMemory(), nil
	}
}

func newPublisher(ctx context.Context, cfg *config.Config, log *slog.Logger) (publisher, error) {
	switch cfg.Notify.Kind {
	case config.NotifierKafka:
		return notify.NewKafka(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic), nil
	case config.NotifierSQS:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return notify.NewSQS(sqs.NewFromConfig(awsCfg), cfg.Notify.SQSQueueURL), nil
	default:
		return notify.NewLog(log), nil
	}
}

func newPolicy(cfg *config.Config) lifecycle.Policy {
	tiers := map[string]lifecycle.TierTerms{}
	for tier, rate := range cfg.Terms.TierFeeRates {
		t := tiers[tier]
		t.FeeRate = rate
		tiers[tier] = t
	}
	for tier, days := range cfg.Terms.TierTermDays {
		t := tiers[tier]
		t.TermDays = days
		tiers[tier] = t
	}
	return lifecycle.Policy{
		FeeRate:         cfg.Terms.FeeRate,
		DefaultRate:     cfg.Terms.DefaultRate,
		TermDays:        cfg.Terms.TermDays,
		MaxAdvanceRatio: cfg.Terms.MaxAdvanceRatio,
		Tiers:           tiers,
	}
}
