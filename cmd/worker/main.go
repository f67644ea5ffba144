package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/config"
	kafkax "github.com/ibnuhabibr/kitversity-pm2-sub000/internal/kafka"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/logging"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/orders"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/projector"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logging.New(cfg.Env, cfg.ServiceName+"-worker")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Cache: &redisx.OrderCache{RDB: rdb},
		Dedup: &redisx.Dedup{RDB: rdb, Service: "projector"},
		Log:   log.Named("projector"),
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicOrderStatusChanged, cfg.WorkerCount, log.Named("consumer"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("status projector started",
			zap.String("group", cfg.WorkerGroup),
			zap.String("topic", orders.TopicOrderStatusChanged),
			zap.Int("workers", cfg.WorkerCount),
		)
		if err := cons.Start(ctx, svc.HandleStatusChanged); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
}
