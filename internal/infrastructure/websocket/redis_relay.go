package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"campuslink/pkg/logger"
)

const (
	relayChannel   = "campuslink:events"
	presencePrefix = "campuslink:presence:"
	presenceTTL    = 2 * pongWait
)

type relayEnvelope struct {
	Origin  string          `json:"origin"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// RedisRelay fans events out to other instances over Redis pub/sub and keeps
// a short-lived presence key per connected user.
type RedisRelay struct {
	client   *redis.Client
	instance string
}

func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{
		client:   client,
		instance: uuid.NewString(),
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (r *RedisRelay) Publish(ctx context.Context, userID string, payload []byte) error {
	data, err := json.Marshal(relayEnvelope{Origin: r.instance, UserID: userID, Payload: payload})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, relayChannel, data).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(userID string, payload []byte)) error {
	pubsub := r.client.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("Relay: dropping malformed message: %v", err)
				continue
			}
			if env.Origin == r.instance {
				continue
			}
			deliver(env.UserID, env.Payload)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *RedisRelay) MarkOnline(ctx context.Context, userID string) error {
	return r.client.Set(ctx, presencePrefix+userID, r.instance, presenceTTL).Err()
}

// MarkOffline clears the key only if this instance still owns it.
func (r *RedisRelay) MarkOffline(ctx context.Context, userID string) error {
	key := presencePrefix + userID
	owner, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != r.instance {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}

func (r *RedisRelay) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.Exists(ctx, presencePrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
