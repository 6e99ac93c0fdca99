package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bidstream/go-live-auctions/internal/auction"
	"github.com/bidstream/go-live-auctions/internal/config"
	"github.com/bidstream/go-live-auctions/internal/indexer"
	kafkax "github.com/bidstream/go-live-auctions/internal/kafka"
	"github.com/bidstream/go-live-auctions/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &indexer.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-indexer",
	}

	// One consumer per topic, same group, same handler.
	for _, topic := range []string{auction.TopicBidAccepted, auction.TopicLifecycleChanged} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.IndexerGroup, topic, cfg.IndexerWorkers)
		go func(topic string) {
			log.Printf("indexer consumer started: group=%s topic=%s workers=%d", cfg.IndexerGroup, topic, cfg.IndexerWorkers)
			if err := cons.Start(ctx, svc.HandleEvent); err != nil {
				log.Printf("consumer exit: %v", err)
				cancel()
			}
		}(topic)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down indexer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
