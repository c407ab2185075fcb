package ship

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "sift:samples"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is a retry count callers may set in
// RedisConfig.Retries. NewRedisShipper does not apply it: a zero
// Retries means a single attempt with no retries.
const DefaultRetries = 3

// Retry backoff bounds: the wait doubles from backoffBase per failed
// attempt and never exceeds backoffCap.
const (
	backoffBase = 250 * time.Millisecond
	backoffCap  = 4 * time.Second
)

// RedisConfig configures the Redis pub/sub shipper.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: sift:samples).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 0).
	Retries int
}

// RedisShipper publishes record batches via Redis PUBLISH, one
// msgpack-encoded message per batch.
type RedisShipper struct {
	config RedisConfig
	client *goredis.Client
}

// NewRedisShipper creates a Redis shipper from the given config.
// Returns an error if the URL is empty or invalid.
func NewRedisShipper(cfg RedisConfig) (*RedisShipper, error) {
	if cfg.URL == "" {
		return nil, errors.New("ship: redis shipper requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ship: invalid redis URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("ship: retries must be >= 0, got %d", cfg.Retries)
	}

	return &RedisShipper{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Ship publishes the batch as one message on the configured channel.
// A failed publish is retried up to Retries times, backing off between
// attempts; cancelling ctx abandons both the in-flight publish and any
// remaining backoff.
func (s *RedisShipper) Ship(ctx context.Context, records []Record) error {
	body, err := msgpack.Marshal(records)
	if err != nil {
		return fmt.Errorf("ship: marshal batch: %w", err)
	}

	for attempt := 0; ; attempt++ {
		err = s.publish(ctx, body)
		if err == nil {
			return nil
		}
		if attempt >= s.config.Retries {
			return fmt.Errorf("ship: redis publish gave up after %d attempts: %w", attempt+1, err)
		}
		if waitErr := backoff(ctx, attempt); waitErr != nil {
			return waitErr
		}
	}
}

// publish performs one PUBLISH bounded by the configured timeout.
func (s *RedisShipper) publish(ctx context.Context, body []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	return s.client.Publish(publishCtx, s.config.Channel, body).Err()
}

// backoff sleeps before the retry following failed attempt n
// (0-based): backoffBase after the first failure, doubling up to
// backoffCap. Returns early when ctx is done.
func backoff(ctx context.Context, n int) error {
	delay := backoffCap
	if shift := backoffBase << uint(n); shift > 0 && shift < backoffCap {
		delay = shift
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("ship: canceled while backing off: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Close releases the Redis client.
func (s *RedisShipper) Close() error {
	return s.client.Close()
}

// Verify RedisShipper implements Shipper.
var _ Shipper = (*RedisShipper)(nil)
