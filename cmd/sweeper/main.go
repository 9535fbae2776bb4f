// Command sweeper expires stale reservations on an EventBridge schedule, for deployments that run
// the API without its in-process sweeper.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	repo "agri-advance/internal/adapter/repository/mysql"
	"agri-advance/internal/config"
	"agri-advance/internal/infrastructure/db"
	"agri-advance/internal/infrastructure/lock"
	"agri-advance/internal/usecase/lifecycle"
	"agri-advance/internal/usecase/liquidity"
)

var manager *liquidity.Manager

func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateDB(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	// schema is owned by the API
	cfg.DB.AutoMigrate = false

	gdb, err := db.OpenGorm(cfg)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}

	// the pool row lock and version check guard against the API sweeping concurrently
	manager = liquidity.NewManager(repo.NewPoolRepository(gdb), repo.NewReservationRepository(gdb),
		repo.NewGormUoW(gdb), lock.NewLocal(cfg.Lock.Wait),
		liquidity.WithReservationTTL(cfg.Pool.ReservationTTL),
		liquidity.WithSweepBatch(cfg.Pool.SweepBatch),
		liquidity.WithExpiryHook(lifecycle.RejectExpired),
	)
}

// HandleRequest is triggered by an EventBridge schedule.
func HandleRequest(ctx context.Context) (int, error) {
	n, err := manager.ExpireStaleReservations(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "reservation sweep failed", "error", err, "expired", n)
		return n, err
	}
	slog.InfoContext(ctx, "reservation sweep finished", "expired", n)
	return n, nil
}

func main() {
	lambda.Start(HandleRequest)
}
