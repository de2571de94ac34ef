package publisher

import (
	"context"
	"encoding/base64"

	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher using a Redis stream
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	stream          string
	streamMaxLength int
	logger          *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(ctx context.Context, addr string, db int, stream string, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		stream:          stream,
		streamMaxLength: streamMaxLength,
		logger:          logger.ForPublisher().WithField("stream", stream),
	}
}

// WithLogger replaces the publisher logger
func (p *RedisPublisher) WithLogger(log *logger.Logger) *RedisPublisher {
	p.logger = log
	return p
}

// Ping checks the connection to Redis
func (p *RedisPublisher) Ping() error {
	return p.client.Ping(p.ctx).Err()
}

// Publish appends a message to the stream.
// The message is base64 encoded before publishing
func (p *RedisPublisher) Publish(key string, message []byte) error {
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	err := p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			key: encodedMessage,
		},
	}).Err()
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Int("size", len(message)).Msg("XADD failed")
		return errors.NewPublisher("publish", "failed to add to stream "+p.stream, err)
	}
	return nil
}

// TrimStreams trims the stream to the configured maximum length
func (p *RedisPublisher) TrimStreams() error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	if err := p.client.XTrimMaxLen(p.ctx, p.stream, int64(p.streamMaxLength)).Err(); err != nil {
		p.logger.Warn().Err(err).Int("max_length", p.streamMaxLength).Msg("XTRIM failed")
		return errors.NewPublisher("trim", "failed to trim stream "+p.stream, err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
