package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/admin"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/events"
	sfgrpc "github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/logger"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/orders"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/repository/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// store is everything the services need from the document database.
type store interface {
	orders.ProductStore
	orders.OrderStore
	orders.Transactor
	catalog.ProductStore
	cart.UserStore
	admin.StatsStore
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Storefront stopped with error", zap.Error(err))
	}
	log.Info("Storefront stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	probes := map[string]sfgrpc.Probe{}

	var db store
	switch cfg.MongoDB.Driver {
	case "memory":
		log.Warn("Using the in-memory store, data is lost on exit")
		db = memory.New()
	default:
		mongo, err := repository.NewMongoRepository(ctx, &cfg.MongoDB)
		if err != nil {
			return err
		}
		defer func() {
			if err := mongo.Close(context.Background()); err != nil {
				log.Warn("Failed to close MongoDB", zap.Error(err))
			}
		}()
		if err := mongo.EnsureIndexes(ctx); err != nil {
			return err
		}
		log.Info("MongoDB connected", zap.String("database", cfg.MongoDB.Database),
			zap.Bool("transactions", cfg.MongoDB.Transactions))
		probes["mongodb"] = mongo.Ping
		db = mongo
	}

	var (
		cache       catalog.Cache
		invalidator events.ProductCache
		idempotency gateway.IdempotencyStore
	)
	if cfg.Redis.Enabled() {
		redis := repository.NewRedisRepository(&cfg.Redis)
		defer redis.Close()
		if err := redis.Ping(ctx); err != nil {
			log.Warn("Redis connection failed", zap.Error(err))
		} else {
			log.Info("Redis connected successfully")
		}
		probes["redis"] = redis.Ping
		cache, invalidator, idempotency = redis, redis, redis
	}

	var (
		ledgerReader catalog.Ledger
		ledgerWriter events.Ledger
	)
	if cfg.MySQL.Enabled() {
		ledger, err := repository.OpenLedger(&cfg.MySQL)
		if err != nil {
			return err
		}
		defer ledger.Close()
		probes["mysql"] = ledger.Ping
		ledgerReader, ledgerWriter = ledger, ledger
		log.Info("Stock ledger enabled", zap.String("database", cfg.MySQL.Database))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	system := actor.NewActorSystem()
	dispatcher, err := events.NewDispatcher(system, events.Sinks{
		Ledger:  ledgerWriter,
		Cache:   invalidator,
		Metrics: m,
	}, log)
	if err != nil {
		return err
	}
	defer dispatcher.Stop(cfg.Gateway.ShutdownTimeout)

	orderService := orders.NewService(db, db, db, dispatcher, log, orders.Options{
		HonorBackorders: cfg.Orders.HonorBackorders,
		TotalTolerance:  cfg.Orders.TotalTolerance,
	})
	catalogService := catalog.NewService(db, cache, ledgerReader, dispatcher, log, cfg.Cache.ProductTTL)

	gw := gateway.NewGateway(cfg, log, gateway.Services{
		Orders:      orderService,
		Catalog:     catalogService,
		Cart:        cart.NewService(db, db, log),
		Admin:       admin.NewService(db),
		Idempotency: idempotency,
		Metrics:     m,
		Gatherer:    registry,
	})
	gw.SetupRoutes()

	health := sfgrpc.NewHealthServer(&cfg.Server, log, probes)
	go health.Run(ctx)

	serverErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- fmt.Errorf("gateway: %w", err)
		}
	}()
	go func() {
		if err := health.Start(); err != nil {
			serverErr <- fmt.Errorf("health server: %w", err)
		}
	}()

	if cfg.Etcd.Enabled() {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, log)
		if err != nil {
			return err
		}
		defer sd.Close()

		instance := &discovery.ServiceInstance{Name: cfg.Server.Name, Host: cfg.Gateway.Host, Port: cfg.Gateway.Port}
		if err := sd.Register(ctx, instance); err != nil {
			log.Error("Failed to register service", zap.Error(err))
		} else {
			if peers, err := sd.Discover(ctx, cfg.Server.Name); err != nil {
				log.Warn("Failed to list storefront instances", zap.Error(err))
			} else {
				addrs := make([]string, 0, len(peers))
				for _, p := range peers {
					addrs = append(addrs, p.Addr())
				}
				log.Info("Storefront instances", zap.Strings("addresses", addrs))
			}
			defer func() {
				dctx, cancel := context.WithTimeout(context.Background(), cfg.Etcd.DialTimeout)
				defer cancel()
				if err := sd.Deregister(dctx, instance); err != nil {
					log.Error("Failed to deregister service", zap.Error(err))
				}
			}()
		}
	}

	log.Info("Storefront started",
		zap.String("http", gw.Addr()),
		zap.String("grpc", health.Addr()))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case runErr = <-serverErr:
		log.Error("Server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("Gateway shutdown failed", zap.Error(err))
	}
	health.Stop()
	return runErr
}
