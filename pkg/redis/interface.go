package redis

import (
	"context"
	"time"
)

// ClientInterface defines the interface for Redis operations
type ClientInterface interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	CompareAndSet(ctx context.Context, key, expected, value string, expiration time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, expected string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error

	// List operations
	RPush(ctx context.Context, key string, values ...interface{}) error
	LPop(ctx context.Context, key string) (string, bool, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Set operations
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SRem(ctx context.Context, key string, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// Geospatial operations
	GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error
	GeoSearchWithDist(ctx context.Context, key string, longitude, latitude, radiusKm float64, count int) ([]GeoMember, error)
	GeoRemove(ctx context.Context, key string, member string) error

	Close() error
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)
