// Package rasterstore keeps built night band rasters in Redis so that several
// skyplotd processes, or one process across restarts, build each raster once.
package rasterstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/star/skyplot/internal/cache"
	"github.com/star/skyplot/internal/plot"
	"github.com/star/skyplot/internal/sky"
)

// keyPrefix is bumped whenever the stored layout or the rendering changes.
const keyPrefix = "skyplot:nightband:v1"

// DefaultTTL is how long a stored raster lives when no TTL is configured.
const DefaultTTL = 7 * 24 * time.Hour

// RedisClientInterface defines the Redis operations used by the store.
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Store is a cache.Store backed by Redis.
type Store struct {
	client RedisClientInterface
	ttl    time.Duration
}

var _ cache.Store = (*Store)(nil)

// New connects to the Redis server at addr.
func New(ctx context.Context, addr string, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewWithClient(client, ttl), nil
}

// NewWithClient creates a store with a custom RedisClientInterface (useful for testing).
func NewWithClient(client RedisClientInterface, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Ping reports whether Redis answers. It backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Key returns the Redis key a raster built for params is stored under.
func Key(params cache.Params) string {
	return fmt.Sprintf("%s:%d:%.6f:%.6f:%g:%dx%d",
		keyPrefix,
		params.Year,
		params.Location.Latitude,
		params.Location.Longitude,
		params.SunThreshold,
		params.Size.X, params.Size.Y,
	)
}

// record is the stored form of a raster.
type record struct {
	Year         int            `json:"year"`
	Location     sky.Location   `json:"location"`
	SunThreshold float64        `json:"sun_threshold"`
	MinHour      float64        `json:"min_hour"`
	MaxHour      float64        `json:"max_hour"`
	Days         []plot.DayBand `json:"days"`
	PNG          []byte         `json:"png"`
}

// Save stores r under Key(params).
func (s *Store) Save(ctx context.Context, params cache.Params, r *plot.NightRaster) error {
	var buf bytes.Buffer
	if err := plot.EncodePNG(&buf, r.Pixels); err != nil {
		return fmt.Errorf("failed to encode raster: %w", err)
	}
	data, err := json.Marshal(record{
		Year:         r.Year,
		Location:     r.Location,
		SunThreshold: r.SunThreshold,
		MinHour:      r.MinHour,
		MaxHour:      r.MaxHour,
		Days:         r.Days,
		PNG:          buf.Bytes(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal raster: %w", err)
	}
	return s.client.Set(ctx, Key(params), data, s.ttl).Err()
}

// Load returns the raster stored for params, or nil if there is none.
func (s *Store) Load(ctx context.Context, params cache.Params) (*plot.NightRaster, error) {
	data, err := s.client.Get(ctx, Key(params)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raster: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raster: %w", err)
	}
	img, err := plot.DecodePNG(bytes.NewReader(rec.PNG))
	if err != nil {
		return nil, fmt.Errorf("failed to decode raster: %w", err)
	}
	if img.Bounds().Size() != params.Size || len(rec.Days) != plot.DaysIn(params.Year) {
		return nil, fmt.Errorf("stored raster for %s does not match its key", params.Key)
	}
	return &plot.NightRaster{
		Pixels:       img,
		MinHour:      rec.MinHour,
		MaxHour:      rec.MaxHour,
		Year:         rec.Year,
		Location:     rec.Location,
		SunThreshold: rec.SunThreshold,
		Days:         rec.Days,
	}, nil
}

// Delete removes the raster stored for params.
func (s *Store) Delete(ctx context.Context, params cache.Params) error {
	return s.client.Del(ctx, Key(params)).Err()
}
