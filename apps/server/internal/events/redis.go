package events

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// NewRedisClient connects and pings. It returns nil when the server is
// unreachable so callers can fall back to the in-process Hub.
func NewRedisClient(opts RedisOptions) *redis.Client {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil
	}
	var tlsConf *tls.Config
	if opts.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[Events] redis ping failed, using in-process fanout: addr=%s err=%v", addr, err)
		_ = client.Close()
		return nil
	}
	return client
}

// Channel is the pub/sub channel carrying snapshots of tournamentID.
func Channel(tournamentID uint64) string {
	return fmt.Sprintf("tourney:%d:state", tournamentID)
}

// RedisFanout publishes snapshots through Redis so every server process
// watching a tournament receives them. Each process holds one Redis
// subscription per tournament that has local subscribers.
type RedisFanout struct {
	client *redis.Client
	hub    *Hub

	mu   sync.Mutex
	subs map[uint64]*redis.PubSub
}

func NewRedisFanout(client *redis.Client) *RedisFanout {
	return &RedisFanout{
		client: client,
		hub:    NewHub(),
		subs:   make(map[uint64]*redis.PubSub),
	}
}

func (f *RedisFanout) Broadcast(ctx context.Context, tournamentID uint64, payload []byte) error {
	return f.client.Publish(ctx, Channel(tournamentID), payload).Err()
}

func (f *RedisFanout) Subscribe(tournamentID uint64) (<-chan []byte, func()) {
	ch, cancel := f.hub.Subscribe(tournamentID)

	f.mu.Lock()
	if _, ok := f.subs[tournamentID]; !ok {
		ps := f.client.Subscribe(context.Background(), Channel(tournamentID))
		f.subs[tournamentID] = ps
		go f.forward(tournamentID, ps)
	}
	f.mu.Unlock()

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		cancel()
		if f.hub.Subscribers(tournamentID) > 0 {
			return
		}
		if ps, ok := f.subs[tournamentID]; ok {
			_ = ps.Close()
			delete(f.subs, tournamentID)
		}
	}
}

func (f *RedisFanout) forward(tournamentID uint64, ps *redis.PubSub) {
	for msg := range ps.Channel() {
		f.hub.Deliver(tournamentID, []byte(msg.Payload))
	}
}

func (f *RedisFanout) Close() error {
	f.mu.Lock()
	for tid, ps := range f.subs {
		_ = ps.Close()
		delete(f.subs, tid)
	}
	f.mu.Unlock()
	_ = f.hub.Close()
	return f.client.Close()
}
