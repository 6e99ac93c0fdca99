package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bidstream/go-live-auctions/internal/auction"
	"github.com/bidstream/go-live-auctions/internal/config"
	"github.com/bidstream/go-live-auctions/internal/engine"
	"github.com/bidstream/go-live-auctions/internal/fanout"
	"github.com/bidstream/go-live-auctions/internal/httpx"
	kafkax "github.com/bidstream/go-live-auctions/internal/kafka"
	"github.com/bidstream/go-live-auctions/internal/postgres"
	"github.com/bidstream/go-live-auctions/internal/redisx"
	"github.com/bidstream/go-live-auctions/internal/store"
	"github.com/bidstream/go-live-auctions/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pBids := kafkax.NewProducer(cfg.KafkaBrokers, auction.TopicBidAccepted, 1024)
	pBids.Start(ctx)
	pLifecycle := kafkax.NewProducer(cfg.KafkaBrokers, auction.TopicLifecycleChanged, 1024)
	pLifecycle.Start(ctx)

	// Committed events go out through redis pub/sub + kafka.
	sink := fanout.NewPublisher(cfg.ServiceName, rdb, pBids, pLifecycle, 0)
	go sink.Run(ctx)

	st := store.NewPostgres(db, sink)
	if err := st.InitSchema(ctx); err != nil {
		log.Fatalf("init schema: %v", err)
	}
	eng := engine.New(st)

	// Local fan-out for websockets, fed back from redis so every API
	// instance sees every auction's events.
	hub := fanout.NewHub(cfg.ServiceName)
	bridge := fanout.NewBridge(rdb, hub)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("bridge exit: %v", err)
		}
	}()

	router := httpx.NewRouter()
	ah := &httpx.AuctionsHandler{
		Store:  st,
		Engine: eng,
		Redis:  rdb,
	}
	ah.Register(router)
	wh := &ws.Handler{Hub: hub}
	wh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pBids.Close()
	pLifecycle.Close()
	cancel()
	pBids.WaitClosed()
	pLifecycle.WaitClosed()
}
