package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements both the KeyValueStore and PubSub ports on a single
// go-redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the URL (redis:// or rediss://) and verifies the
// connection with a ping before returning.
func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Client exposes the underlying connection for health checks.
func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return value, err
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) SetAdd(ctx context.Context, key, member string) error {
	return r.client.SAdd(ctx, key, member).Err()
}

func (r *Redis) SetRemove(ctx context.Context, key, member string) error {
	return r.client.SRem(ctx, key, member).Err()
}

func (r *Redis) SetMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *Redis) Decr(ctx context.Context, key string) (int64, error) {
	return r.client.Decr(ctx, key).Result()
}

func (r *Redis) ListPushTrim(ctx context.Context, key, value string, capacity int64) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, capacity-1)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) ListRange(ctx context.Context, key string) ([]string, error) {
	return r.client.LRange(ctx, key, 0, -1).Result()
}

func (r *Redis) Publish(ctx context.Context, channel, payload string) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := r.client.Subscribe(ctx, channel)
	// Receive forces the SUBSCRIBE round trip so a publish immediately after
	// Subscribe returns is not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := &redisSubscription{
		pubsub:   pubsub,
		messages: make(chan string),
	}
	go sub.forward(ctx)
	return sub, nil
}

type redisSubscription struct {
	pubsub   *redis.PubSub
	messages chan string
}

func (s *redisSubscription) forward(ctx context.Context) {
	defer close(s.messages)
	ch := s.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case s.messages <- msg.Payload:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan string {
	return s.messages
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
