package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourney-lite/apps/server/internal/config"
	"tourney-lite/apps/server/internal/director"
	"tourney-lite/apps/server/internal/events"
	"tourney-lite/apps/server/internal/gateway"
	"tourney-lite/apps/server/internal/httpapi"
	"tourney-lite/apps/server/internal/ledger"
	"tourney-lite/apps/server/internal/store"

	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML config file (default $TOURNEY_CONFIG)")
	addr := pflag.String("addr", "", "listen address, overrides the config")
	storeMode := pflag.String("store", "", "store mode: memory, sqlite or postgres")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *storeMode != "" {
		cfg.Store.Mode = *storeMode
		if err := cfg.Validate(); err != nil {
			log.Fatalf("[Server] Invalid config: %v", err)
		}
	}

	st, storeDetail, err := store.Open(cfg.Store.Mode, cfg.Store.SQLitePath, cfg.Store.DSN)
	if err != nil {
		log.Fatalf("[Server] Failed to open store: %v", err)
	}
	defer st.Close()

	publisher := events.Noop()
	if cfg.AMQP.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			log.Printf("[Server] AMQP unavailable, audit events disabled: %v", err)
		} else {
			publisher = amqpPub
			log.Printf("[Server] Audit events -> queue %s", cfg.AMQP.Queue)
		}
	}
	defer publisher.Close()

	var fanout events.Fanout = events.NewHub()
	if client := events.NewRedisClient(events.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}); client != nil {
		fanout = events.NewRedisFanout(client)
		log.Printf("[Server] Snapshot fanout via redis %s", cfg.Redis.Addr)
	}
	defer fanout.Close()

	d := director.New(director.Options{
		Store:           st,
		Policy:          cfg.Policy,
		Publisher:       publisher,
		Fanout:          fanout,
		DefaultMaxSeats: cfg.DefaultMaxSeats,
	})
	gw := gateway.New(fanout, d)
	defer gw.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	httpapi.NewHTTPHandler(d).RegisterRoutes(mux)
	ledger.NewHTTPHandler(ledger.NewService(st)).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("[Server] Store: %s", storeDetail)
	log.Printf("[Server] Rebuy policy: %+v", cfg.Policy)
	log.Printf("[Server] Starting tournament server on %s", cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Server] Shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
	log.Printf("[Server] Stopped")
}
