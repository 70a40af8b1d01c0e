package tools

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/sha3"

	"github.com/txplain/callplain/internal/models"
)

// ErrCacheMiss is returned by GetJSON when the key is not cached
var ErrCacheMiss = errors.New("cache miss")

// Cache provides a simple key-value cache interface for tools
type Cache interface {
	// Get retrieves a value by key, returns nil if not found
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with optional TTL
	Set(ctx context.Context, key string, value []byte, ttl *time.Duration) error

	// GetJSON retrieves and unmarshals JSON data
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// SetJSON marshals and stores JSON data
	SetJSON(ctx context.Context, key string, value interface{}, ttl *time.Duration) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Has checks if a key exists
	Has(ctx context.Context, key string) bool

	Close() error
}

// Cache backends accepted by OpenCache
const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// ExplanationTTLDuration is how long a generated explanation stays valid.
// Catalog or model upgrades are picked up once entries expire.
var ExplanationTTLDuration = time.Hour * 24

// Cache key patterns
const (
	// call-explanation:<fingerprint>
	ExplanationKeyPattern = "call-explanation:%s"
	// call-lock:<fingerprint>
	ExplanationLockKeyPattern = "call-lock:%s"
)

// ExplanationKey returns the cache key for a call fingerprint
func ExplanationKey(fingerprint string) string {
	return fmt.Sprintf(ExplanationKeyPattern, fingerprint)
}

func resolveTTL(ttl, defaultTTL *time.Duration) time.Duration {
	if ttl != nil {
		return *ttl
	}
	if defaultTTL != nil {
		return *defaultTTL
	}
	return 0
}

func getJSON(ctx context.Context, c Cache, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	return json.Unmarshal(data, dest)
}

func setJSON(ctx context.Context, c Cache, key string, value interface{}, ttl *time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// MemoryCache implements Cache in process with ristretto
type MemoryCache struct {
	cache      *ristretto.Cache[string, []byte]
	defaultTTL *time.Duration
}

// NewMemoryCache creates an in-process cache holding at most maxItems values
func NewMemoryCache(maxItems int64, defaultTTL *time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("max items must be positive, got %d", maxItems)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &MemoryCache{cache: cache, defaultTTL: defaultTTL}, nil
}

// Get retrieves a value by key
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, found := c.cache.Get(key)
	if !found {
		return nil, nil
	}
	return value, nil
}

// Set stores a value. Every value costs one unit, so MaxCost bounds the item count.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl *time.Duration) error {
	expiry := resolveTTL(ttl, c.defaultTTL)
	if expiry < 0 {
		return fmt.Errorf("negative ttl for key %s", key)
	}
	if !c.cache.SetWithTTL(key, value, 1, expiry) {
		return fmt.Errorf("memory cache rejected key %s", key)
	}
	c.cache.Wait()
	return nil
}

// GetJSON retrieves and unmarshals JSON data
func (c *MemoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	return getJSON(ctx, c, key, dest)
}

// SetJSON marshals and stores JSON data
func (c *MemoryCache) SetJSON(ctx context.Context, key string, value interface{}, ttl *time.Duration) error {
	return setJSON(ctx, c, key, value, ttl)
}

// Delete removes a key
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.cache.Del(key)
	return nil
}

// Has checks if a key exists
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, found := c.cache.Get(key)
	return found
}

// Close stops the cache's background goroutines
func (c *MemoryCache) Close() error {
	c.cache.Close()
	return nil
}

// RedisCache implements Cache on a redis server shared between instances
type RedisCache struct {
	client     *redis.Client
	defaultTTL *time.Duration
	keyPrefix  string
}

// DialRedis connects to addr and checks the connection
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisCache wraps a connected client
func NewRedisCache(client *redis.Client, keyPrefix string, defaultTTL *time.Duration) *RedisCache {
	return &RedisCache{
		client:     client,
		defaultTTL: defaultTTL,
		keyPrefix:  keyPrefix,
	}
}

// formatKey adds prefix to avoid collisions
func (c *RedisCache) formatKey(key string) string {
	if c.keyPrefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", c.keyPrefix, key)
}

// Get retrieves a value by key
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.formatKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Set stores a value; a zero TTL keeps it until deleted
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl *time.Duration) error {
	expiry := resolveTTL(ttl, c.defaultTTL)
	if expiry < 0 {
		return fmt.Errorf("negative ttl for key %s", key)
	}
	if err := c.client.Set(ctx, c.formatKey(key), value, expiry).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// GetJSON retrieves and unmarshals JSON data
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	return getJSON(ctx, c, key, dest)
}

// SetJSON marshals and stores JSON data
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl *time.Duration) error {
	return setJSON(ctx, c, key, value, ttl)
}

// Delete removes a key
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.formatKey(key)).Err()
}

// Has checks if a key exists
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, c.formatKey(key)).Result()
	return err == nil && n > 0
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CacheOptions selects and sizes the explanation cache
type CacheOptions struct {
	Backend   string
	RedisAddr string
	KeyPrefix string
	TTL       time.Duration
	MaxItems  int64
}

// OpenCache builds the cache and the matching lock for a backend. The "none"
// backend returns a nil Cache.
func OpenCache(ctx context.Context, opts CacheOptions) (Cache, Locker, error) {
	ttl := opts.TTL
	switch opts.Backend {
	case "", CacheBackendNone:
		return nil, NoopLocker{}, nil
	case CacheBackendMemory:
		cache, err := NewMemoryCache(opts.MaxItems, &ttl)
		if err != nil {
			return nil, nil, err
		}
		return cache, NoopLocker{}, nil
	case CacheBackendRedis:
		client, err := DialRedis(ctx, opts.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisCache(client, opts.KeyPrefix, &ttl), NewRedisLocker(client, DefaultLockExpiry, DefaultLockTries), nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %s", opts.Backend)
	}
}

// CallFingerprint identifies a call by its content. Object keys are sorted
// before hashing, so key order in the request does not matter.
func CallFingerprint(call *models.RawCall) string {
	buf := make([]byte, 0, 256)
	buf = strconv.AppendQuote(buf, call.Section)
	buf = strconv.AppendQuote(buf, call.Method)
	buf = strconv.AppendQuote(buf, call.Token)
	buf = strconv.AppendInt(buf, int64(call.Decimal), 10)
	buf = append(buf, ':')
	buf = appendCanonical(buf, call.Args)

	sum := sha3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func appendCanonical(dst []byte, v *fastjson.Value) []byte {
	if v == nil {
		return append(dst, "null"...)
	}

	switch v.Type() {
	case fastjson.TypeObject:
		type field struct {
			key   string
			value *fastjson.Value
		}
		var fields []field
		o, _ := v.Object()
		o.Visit(func(key []byte, child *fastjson.Value) {
			fields = append(fields, field{string(key), child})
		})
		sort.Slice(fields, func(i, j int) bool { return fields[i].key < fields[j].key })

		dst = append(dst, '{')
		for i, f := range fields {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = strconv.AppendQuote(dst, f.key)
			dst = append(dst, ':')
			dst = appendCanonical(dst, f.value)
		}
		return append(dst, '}')
	case fastjson.TypeArray:
		items, _ := v.Array()
		dst = append(dst, '[')
		for i, item := range items {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendCanonical(dst, item)
		}
		return append(dst, ']')
	case fastjson.TypeString:
		return strconv.AppendQuote(dst, string(v.GetStringBytes()))
	default:
		return v.MarshalTo(dst)
	}
}
