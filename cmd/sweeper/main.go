package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bidstream/go-live-auctions/internal/auction"
	"github.com/bidstream/go-live-auctions/internal/config"
	"github.com/bidstream/go-live-auctions/internal/fanout"
	kafkax "github.com/bidstream/go-live-auctions/internal/kafka"
	"github.com/bidstream/go-live-auctions/internal/postgres"
	"github.com/bidstream/go-live-auctions/internal/redisx"
	"github.com/bidstream/go-live-auctions/internal/scheduler"
	"github.com/bidstream/go-live-auctions/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pBids := kafkax.NewProducer(cfg.KafkaBrokers, auction.TopicBidAccepted, 1024)
	pBids.Start(ctx)
	pLifecycle := kafkax.NewProducer(cfg.KafkaBrokers, auction.TopicLifecycleChanged, 1024)
	pLifecycle.Start(ctx)

	sink := fanout.NewPublisher(cfg.ServiceName+"-sweeper", rdb, pBids, pLifecycle, 0)
	go sink.Run(ctx)
	st := store.NewPostgres(db, sink)
	if err := st.InitSchema(ctx); err != nil {
		log.Fatalf("init schema: %v", err)
	}

	sw := scheduler.New(st, cfg.SweepInterval)
	go func() {
		log.Printf("sweeper started: interval=%s", cfg.SweepInterval)
		sw.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down sweeper...")
	cancel()
	pBids.Close()
	pLifecycle.Close()
	pBids.WaitClosed()
	pLifecycle.WaitClosed()
}
