package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/system"
	"github.com/thekrishnasarathe/DexiFi-Bridge/pkg/logger"
)

// RedisPublisher relays bus events to a Redis pub/sub channel so watchers
// outside the process (the operator's relayer, monitoring) can react to
// bridge state changes. Publish failures are logged and never propagate into
// coordinator state.
type RedisPublisher struct {
	bus     *Bus
	client  redis.UniversalClient
	channel string
	log     *logger.Logger

	mu      sync.Mutex
	cancel  func()
	done    chan struct{}
	running bool
}

var _ system.Service = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher pumping events from bus to channel.
func NewRedisPublisher(bus *Bus, client redis.UniversalClient, channel string, log *logger.Logger) *RedisPublisher {
	if log == nil {
		log = logger.NewDefault("events-redis")
	}
	if channel == "" {
		channel = "bridge.events"
	}
	return &RedisPublisher{
		bus:     bus,
		client:  client,
		channel: channel,
		log:     log,
	}
}

func (p *RedisPublisher) Name() string { return "events-redis" }

func (p *RedisPublisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	events, cancel := p.bus.Subscribe(64)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go func() {
		defer close(p.done)
		for ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				p.log.WithError(err).Warn("encode event for redis")
				continue
			}
			if err := p.client.Publish(context.Background(), p.channel, payload).Err(); err != nil {
				p.log.WithError(err).
					WithField("event_type", string(ev.Type)).
					Warn("publish event to redis")
			}
		}
	}()

	p.log.WithField("channel", p.channel).Info("redis event publisher started")
	return nil
}

func (p *RedisPublisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	done := p.done
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
