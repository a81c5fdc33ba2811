package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/config"
	"github.com/dokkazy/dtp-frontend-sub000/internal/handler"
	"github.com/dokkazy/dtp-frontend-sub000/internal/infra/bus"
	"github.com/dokkazy/dtp-frontend-sub000/internal/infra/db"
	"github.com/dokkazy/dtp-frontend-sub000/internal/infra/notify"
	infraRepo "github.com/dokkazy/dtp-frontend-sub000/internal/infra/repository"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"
	"github.com/dokkazy/dtp-frontend-sub000/internal/server"
	"github.com/dokkazy/dtp-frontend-sub000/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

func main() {
	//.envは任意
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	//DB接続（ツアーは常にDBから読む）
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Redisはstorageかbusで使う時だけ
	var rdb *redis.Client
	if cfg.CartStorage == config.StorageRedis || cfg.CartBus == config.BusRedis {
		rdb, err = db.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	storage := newCartStorage(ctx, cfg, gormDB, rdb, logger)

	cartBus, err := newCartBus(cfg, rdb, logger)
	if err != nil {
		return err
	}
	defer cartBus.Close()

	clock := usecase.SystemClock{}

	//Usecase生成
	carts := usecase.NewCartSessions(usecase.CartSessionsParams{
		Storage:    storage,
		Bus:        cartBus,
		Notifier:   notify.NewZapNotifier(logger),
		Clock:      clock,
		Scheduler:  usecase.SystemScheduler{},
		Logger:     logger,
		SessionTTL: cfg.CartSessionTTL,
	})
	defer carts.Close()

	cartUC := usecase.NewCartUsecase(carts)
	bookingUC := usecase.NewBookingUsecase(infraRepo.NewTourGormRepository(gormDB), carts, clock)

	//Handler生成
	e := server.New(cfg, logger, server.Handlers{
		Cart:    handler.NewCartHandler(cartUC),
		Booking: handler.NewBookingHandler(bookingUC),
	})

	return server.Start(ctx, e, cfg.Addr(), logger)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProd() {
		zc = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func newCartStorage(ctx context.Context, cfg config.Config, gormDB *gorm.DB, rdb *redis.Client, logger *zap.Logger) repo.CartStorage {
	switch cfg.CartStorage {
	case config.StorageRedis:
		return infraRepo.NewRedisCartStorage(rdb)
	case config.StoragePostgres:
		s := infraRepo.NewGormCartStorage(gormDB, time.Now)
		go purgeExpiredCarts(ctx, s, time.Hour, logger)
		return s
	default:
		return infraRepo.NewMemoryCartStorage(time.Now)
	}
}

func newCartBus(cfg config.Config, rdb *redis.Client, logger *zap.Logger) (repo.CartBus, error) {
	switch cfg.CartBus {
	case config.BusRedis:
		return bus.NewRedisBus(rdb, logger), nil
	case config.BusAMQP:
		return bus.NewAMQPBus(cfg.AMQPURL, logger)
	default:
		return bus.NewGoChannelBus(logger), nil
	}
}

// 期限切れの行を定期的に消す
func purgeExpiredCarts(ctx context.Context, s *infraRepo.GormCartStorage, every time.Duration, logger *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired carts failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged expired carts", zap.Int64("rows", n))
			}
		}
	}
}
