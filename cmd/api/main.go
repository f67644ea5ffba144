package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/admin"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/cart"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/catalog"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/config"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/httpx"
	kafkax "github.com/ibnuhabibr/kitversity-pm2-sub000/internal/kafka"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/logging"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/metrics"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/payments"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/postgres"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/redisx"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logging.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("producer"))
	prod.Start(ctx)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sm := metrics.NewServerMetrics(reg)

	// Domain
	orderRepo := &orders.Repo{DB: db}
	gw := payments.NewGateway(cfg.MidtransServerKey, cfg.MidtransAPIURL, cfg.MidtransSnapURL)
	var charger orders.Charger
	if cfg.MidtransServerKey != "" {
		charger = gw
	} else {
		log.Warn("MIDTRANS_SERVER_KEY not set, gateway checkout sessions disabled")
	}
	orderSvc := &orders.Service{
		Store:     orderRepo,
		Publisher: prod,
		Charger:   charger,
		Log:       log.Named("orders"),
		Producer:  cfg.ServiceName,
	}
	cache := &redisx.OrderCache{RDB: rdb}
	rec := &payments.Reconciler{
		Store:     orderRepo,
		Gateway:   gw,
		ServerKey: cfg.MidtransServerKey,
		Dedup:     &redisx.Dedup{RDB: rdb, Service: "reconcile"},
		Cache:     cache,
		Publisher: prod,
		Outcomes:  sm.Reconciliations,
		Log:       log.Named("payments"),
		Producer:  cfg.ServiceName,
	}
	catalogSvc := &catalog.Service{Store: &catalog.Repo{DB: db}, Log: log.Named("catalog")}
	if cfg.SeedCatalog {
		if _, err := catalogSvc.Seed(ctx); err != nil {
			log.Fatal("seed catalog", zap.Error(err))
		}
	}
	if cfg.AdminAPIKey == "" {
		log.Warn("ADMIN_API_KEY not set, admin routes are unprotected")
	}

	// HTTP
	router := httpx.NewRouter(httpx.RouterConfig{
		Log:      log.Named("http"),
		Metrics:  sm,
		Gatherer: reg,
		Ready: map[string]httpx.Check{
			"postgres": pingPostgres(db),
			"redis":    pingRedis(rdb),
		},
	})
	(&httpx.OrdersHandler{Service: orderSvc, Cache: cache, AdminKey: cfg.AdminAPIKey, Log: log}).Register(router)
	(&httpx.ProductsHandler{Service: catalogSvc, AdminKey: cfg.AdminAPIKey, Log: log}).Register(router)
	(&httpx.PaymentsHandler{Reconciler: rec, Log: log}).Register(router)
	(&httpx.CartHandler{Storage: &cart.RedisStorage{RDB: rdb}, Orders: orderSvc, Log: log}).Register(router)
	(&httpx.UsersHandler{Store: &users.Repo{DB: db}, AdminKey: cfg.AdminAPIKey, Log: log}).Register(router)
	(&httpx.AdminHandler{Stats: &admin.Repo{DB: db}, AdminKey: cfg.AdminAPIKey, Log: log}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// graceful shutdown
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	prod.Close()      // stop accepting, flush inbox
	prod.WaitClosed() // writer closed
}

func pingPostgres(db *pgxpool.Pool) httpx.Check {
	return func(ctx context.Context) error { return db.Ping(ctx) }
}

func pingRedis(rdb *redis.Client) httpx.Check {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}
