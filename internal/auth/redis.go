package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/oauth2"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

const timeFormat = time.RFC3339

// RedisBroker shares auth events between server instances over a redis
// pub/sub channel. The latest session lives in a redis hash so a freshly
// started instance picks it up.
type RedisBroker struct {
	redis      *redis.Client
	channel    string
	sessionKey string
}

func NewRedisBroker(redisURL, channel, sessionKey string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBroker{redis: client, channel: channel, sessionKey: sessionKey}, nil
}

func (b *RedisBroker) Close() error {
	if b.redis != nil {
		return b.redis.Close()
	}
	return nil
}

func sessionFields(s *gateway.Session) map[string]interface{} {
	fields := map[string]interface{}{
		"user_id": s.User.ID,
		"email":   s.User.Email,
	}
	if s.Token != nil {
		fields["access_token"] = s.Token.AccessToken
		fields["refresh_token"] = s.Token.RefreshToken
		fields["token_type"] = s.Token.TokenType
		if !s.Token.Expiry.IsZero() {
			fields["expiry_utc"] = s.Token.Expiry.UTC().Format(timeFormat)
		}
	}
	return fields
}

func sessionFromFields(values map[string]string) *gateway.Session {
	if len(values) == 0 || values["access_token"] == "" {
		return nil
	}

	expiry, _ := time.Parse(timeFormat, values["expiry_utc"])
	return &gateway.Session{
		Token: &oauth2.Token{
			AccessToken:  values["access_token"],
			RefreshToken: values["refresh_token"],
			TokenType:    values["token_type"],
			Expiry:       expiry,
		},
		User: gateway.User{ID: values["user_id"], Email: values["email"]},
	}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode auth event: %w", err)
	}

	pipe := b.redis.TxPipeline()
	pipe.Del(ctx, b.sessionKey)
	if ev.Kind != SignedOut && ev.Session != nil {
		pipe.HSet(ctx, b.sessionKey, sessionFields(ev.Session))
	}
	pipe.Publish(ctx, b.channel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	pubsub := b.redis.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	events := make(chan Event, subscriberBuffer)
	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Error.Printf("Ignoring malformed auth event on %s: %v", b.channel, err)
				continue
			}
			events <- ev
		}
	}()

	return events, func() { pubsub.Close() }, nil
}

func (b *RedisBroker) Latest(ctx context.Context) (*gateway.Session, error) {
	values, err := b.redis.HGetAll(ctx, b.sessionKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest session: %w", err)
	}
	return sessionFromFields(values), nil
}
