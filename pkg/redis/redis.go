package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hiveride/dispatch/pkg/config"
)

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// compareAndSetScript sets KEYS[1] to ARGV[2] with a millisecond TTL only when
// the current value equals ARGV[1]. An absent key counts as the empty string,
// so callers can claim an unset key by expecting "".
const compareAndSetScript = `local cur = redis.call('GET', KEYS[1])
if cur == false then cur = '' end
if cur == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
  return 1
end
return 0`

// deleteIfEqualsScript deletes KEYS[1] only when its value equals ARGV[1].
const deleteIfEqualsScript = `if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0`

// SetWithExpiration sets a key-value pair with expiration
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Set(ctx, key, value, expiration).Err()
}

// GetString gets a string value by key. A missing key returns "" without error.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	result, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return result, err
}

// CompareAndSet atomically replaces the value of key with value when the
// current value equals expected ("" matches an absent key). Returns whether
// the swap was applied.
func (c *Client) CompareAndSet(ctx context.Context, key, expected, value string, expiration time.Duration) (bool, error) {
	result, err := c.Eval(ctx, compareAndSetScript, []string{key}, expected, value, expiration.Milliseconds()).Result()
	if err != nil {
		return false, err
	}

	applied, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected CAS reply type %T", result)
	}
	return applied == 1, nil
}

// DeleteIfEquals atomically deletes key when its value equals expected.
// Returns whether the key was deleted.
func (c *Client) DeleteIfEquals(ctx context.Context, key, expected string) (bool, error) {
	result, err := c.Eval(ctx, deleteIfEqualsScript, []string{key}, expected).Result()
	if err != nil {
		return false, err
	}

	deleted, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected delete reply type %T", result)
	}
	return deleted == 1, nil
}

// Delete deletes one or more keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Del(ctx, keys...).Err()
}

// Exists checks if a key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// Expire sets an expiration on a key
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.Client.Expire(ctx, key, expiration).Err()
}

// RPush appends one or more values to a list
func (c *Client) RPush(ctx context.Context, key string, values ...interface{}) error {
	return c.Client.RPush(ctx, key, values...).Err()
}

// LPop removes and returns the head of a list. The bool reports whether an
// element was present.
func (c *Client) LPop(ctx context.Context, key string) (string, bool, error) {
	result, err := c.Client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return result, true, nil
}

// LRange retrieves a range of elements from a list
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.Client.LRange(ctx, key, start, stop).Result()
}

// SAdd adds members to a set
func (c *Client) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return c.Client.SAdd(ctx, key, members...).Err()
}

// SRem removes members from a set
func (c *Client) SRem(ctx context.Context, key string, members ...interface{}) error {
	return c.Client.SRem(ctx, key, members...).Err()
}

// SMembers returns all members of a set
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.Client.SMembers(ctx, key).Result()
}

// GeoMember is a geo index entry with its distance from the query point.
type GeoMember struct {
	Name       string
	DistanceKm float64
}

// GeoAdd adds a location to a geospatial index
func (c *Client) GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error {
	return c.Client.GeoAdd(ctx, key, &redis.GeoLocation{
		Longitude: longitude,
		Latitude:  latitude,
		Name:      member,
	}).Err()
}

// GeoSearchWithDist searches for members within a radius, closest first,
// returning each member with its distance in kilometers.
func (c *Client) GeoSearchWithDist(ctx context.Context, key string, longitude, latitude, radiusKm float64, count int) ([]GeoMember, error) {
	result, err := c.Client.GeoSearchLocation(ctx, key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  longitude,
			Latitude:   latitude,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      count,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}

	members := make([]GeoMember, 0, len(result))
	for _, loc := range result {
		members = append(members, GeoMember{Name: loc.Name, DistanceKm: loc.Dist})
	}

	return members, nil
}

// GeoRemove removes a member from a geospatial index
func (c *Client) GeoRemove(ctx context.Context, key string, member string) error {
	return c.Client.ZRem(ctx, key, member).Err()
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}
