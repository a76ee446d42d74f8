package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/pricechek-rider/internal/adapter/gateway"
	"github.com/rl1809/pricechek-rider/internal/adapter/handler"
	"github.com/rl1809/pricechek-rider/internal/adapter/handler/dialogrpc"
	"github.com/rl1809/pricechek-rider/internal/adapter/metrics"
	"github.com/rl1809/pricechek-rider/internal/adapter/pricing"
	"github.com/rl1809/pricechek-rider/internal/adapter/storage"
	"github.com/rl1809/pricechek-rider/internal/config"
	"github.com/rl1809/pricechek-rider/internal/core/service"
	"github.com/rl1809/pricechek-rider/internal/logging"
	"github.com/rl1809/pricechek-rider/internal/port"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configFile := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	cache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	sender, closeSender, err := openGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender()

	m := metrics.New()

	dispatcher := service.NewDispatcher(sender, service.DispatcherConfig{
		QueueSize:     cfg.Dispatch.QueueSize,
		Workers:       cfg.Dispatch.Workers,
		RatePerSecond: cfg.Dispatch.RatePerSecond,
		Burst:         cfg.Dispatch.Burst,
		SendTimeout:   cfg.Gateway.Timeout,
	}, logger.Named("dispatcher"), m)
	dispatcher.Start()

	ussd := service.NewUSSDService(db, cache, dispatcher, logger.Named("ussd"), m)
	sms := service.NewSMSService(db, cache, pricing.NewMockProvider(), dispatcher, service.DialogOptions{
		CancelWindow:    cfg.Dialog.CancelWindow,
		DeliveryFee:     cfg.Dialog.DeliveryFee,
		TrackingBaseURL: cfg.Dialog.TrackingBaseURL,
	}, logger.Named("sms"), m)

	httpHandler := handler.NewHTTPHandler(ussd, sms, db, logger.Named("http"))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Router(m.Handler(), m.Middleware),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	dialogrpc.RegisterDialogServer(grpcServer, handler.NewGRPCHandler(ussd, sms, logger.Named("grpc")))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		dispatcher.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return nil
	})

	err = g.Wait()

	// Servers are down, so nothing enqueues anymore; flush what is left.
	dispatcher.Close()
	logger.Info("dispatcher stopped")
	return err
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (port.DatabaseRepository, func(), error) {
	switch cfg.Store.Driver {
	case "mysql":
		db, err := sql.Open("mysql", cfg.Store.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to mysql")
		return adapter, func() { db.Close() }, nil

	default:
		db, err := storage.OpenBadger(cfg.Store.BadgerDir, false, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened badger store", zap.String("dir", cfg.Store.BadgerDir))
		return storage.NewBadgerAdapter(db), func() { db.Close() }, nil
	}
}

func openCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (port.CacheRepository, func(), error) {
	if cfg.Redis.Addr == "" {
		cache, err := storage.NewMemoryCache(0)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using in-process locks, run a single instance only")
		return cache, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: 50,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	return storage.NewRedisAdapter(rdb, cfg.LockTTL, logger.Named("redis")), func() { rdb.Close() }, nil
}

func openGateway(cfg config.Config, logger *zap.Logger) (port.MessageSender, func(), error) {
	gw := cfg.Gateway
	at := gateway.AfricasTalkingConfig{
		Username:  gw.ATUsername,
		APIKey:    gw.ATAPIKey,
		Env:       gw.ATEnv,
		Shortcode: gw.ATShortcode,
		SenderID:  gw.ATSenderID,
		BaseURL:   gw.ATBaseURL,
		Timeout:   gw.Timeout,
	}

	driver := gateway.ResolveDriver(gw.Driver, at.Configured(), gw.NATSURL != "")
	logger.Info("sms gateway selected", zap.String("driver", driver))

	switch driver {
	case gateway.DriverAfricasTalking:
		return gateway.NewAfricasTalkingSender(at), func() {}, nil
	case gateway.DriverNATS:
		conn, err := gateway.ConnectNATS(gw.NATSURL, gw.Timeout)
		if err != nil {
			return nil, nil, err
		}
		from := gw.ATShortcode
		if from == "" {
			from = gw.ATSenderID
		}
		return gateway.NewNATSSender(conn, gw.NATSSubject, from), func() { conn.Drain() }, nil
	default:
		logger.Warn("no sms gateway configured, outbound messages are only logged")
		return gateway.NewLogSender(logger.Named("gateway")), func() {}, nil
	}
}
