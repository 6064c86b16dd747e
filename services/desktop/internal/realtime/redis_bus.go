package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"orionos/internal/util"
	"orionos/pkg/domain"
)

// LocalPublisher delivers an event to the sockets held by this process.
type LocalPublisher interface {
	Publish(profileID string, ev domain.Event)
}

// RedisBusConfig configures the cross-node event stream.
type RedisBusConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
	Block    time.Duration
}

// RedisBus relays events through a redis stream so every desktop replica
// can reach the sockets it holds. Each node reads the whole stream and
// skips the entries it appended itself, which it already delivered.
type RedisBus struct {
	client *redis.Client
	stream string
	node   string
	maxLen int64
	block  time.Duration
	local  LocalPublisher
}

// NewRedisBus builds a bus that hands stream entries to local.
func NewRedisBus(cfg RedisBusConfig, local LocalPublisher) (*RedisBus, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	if local == nil {
		return nil, errors.New("local publisher required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "orionos:events"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	return &RedisBus{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		node:   util.NewID(),
		maxLen: maxLen,
		block:  block,
		local:  local,
	}, nil
}

// Publish delivers the event to this node's sockets and appends it to the
// stream for the other nodes.
func (b *RedisBus) Publish(profileID string, ev domain.Event) {
	b.local.Publish(profileID, ev)

	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("realtime encode failed", "err", err, "type", ev.Type)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{
			"profile_id": profileID,
			"node":       b.node,
			"event":      string(payload),
		},
	}).Err()
	if err != nil {
		slog.Warn("realtime stream append failed, event stays on this node", "err", err, "type", ev.Type)
	}
}

// Start positions the cursor at the current end of the stream and begins
// relaying entries until ctx is done.
func (b *RedisBus) Start(ctx context.Context) error {
	cursor := "0-0"
	last, err := b.client.XRevRangeN(ctx, b.stream, "+", "-", 1).Result()
	if err != nil {
		return err
	}
	if len(last) > 0 {
		cursor = last[0].ID
	}
	go b.relay(ctx, cursor)
	return nil
}

func (b *RedisBus) relay(ctx context.Context, cursor string) {
	for {
		if ctx.Err() != nil {
			return
		}
		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{b.stream, cursor},
			Count:   100,
			Block:   b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.Warn("realtime stream read failed", "err", err)
			time.Sleep(time.Second)
			continue
		}
		for _, s := range streams {
			for _, msg := range s.Messages {
				cursor = msg.ID
				b.deliver(msg.Values)
			}
		}
	}
}

func (b *RedisBus) deliver(values map[string]any) {
	if node, _ := values["node"].(string); node == b.node {
		return
	}
	profileID, _ := values["profile_id"].(string)
	raw, _ := values["event"].(string)
	if profileID == "" || raw == "" {
		return
	}
	var ev domain.Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		slog.Warn("realtime stream entry dropped", "err", err)
		return
	}
	b.local.Publish(profileID, ev)
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
