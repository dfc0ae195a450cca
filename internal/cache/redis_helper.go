package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
)

const (
	defaultCacheTTL = time.Hour
	scanBatchSize   = 100
)

// keyspace stores JSON payloads under "<prefix>:<sku>:<digest>" so a SKU's
// entries can be dropped with one prefix scan.
type keyspace struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func newKeyspace(client *redis.Client, prefix string, ttl time.Duration) keyspace {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return keyspace{client: client, prefix: prefix, ttl: ttl}
}

func (k keyspace) key(sku string, parts ...string) string {
	return k.skuPrefix(sku) + hashParts(parts)
}

func (k keyspace) skuPrefix(sku string) string {
	return fmt.Sprintf("%s:%s:", k.prefix, strings.ToLower(strings.TrimSpace(sku)))
}

// load decodes the entry into dst and reports whether it existed.
func (k keyspace) load(ctx context.Context, key string, dst any) (bool, error) {
	payload, err := k.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode %s cache: %w", k.prefix, err)
	}
	return true, nil
}

func (k keyspace) save(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s cache: %w", k.prefix, err)
	}
	if err := k.client.Set(ctx, key, payload, k.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (k keyspace) purgeSKU(ctx context.Context, sku string) error {
	return unlinkKeysWithPrefix(ctx, k.client, k.skuPrefix(sku))
}

func (k keyspace) purgeAll(ctx context.Context) error {
	return unlinkKeysWithPrefix(ctx, k.client, k.prefix+":")
}

func newRedisClient(cfg config.CacheConfig) (*redis.Client, time.Duration, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, 0, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, 0, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, time.Duration(cfg.ForecastTTLSeconds) * time.Second, nil
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}

	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func unlinkKeysWithPrefix(ctx context.Context, client *redis.Client, prefix string) error {
	iter := client.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := client.Unlink(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis unlink failed: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(batch) > 0 {
		if err := client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
	}
	return nil
}

// hashParts builds a stable digest of key=value parts regardless of order.
func hashParts(parts []string) string {
	c := append([]string(nil), parts...)
	sort.Strings(c)
	sum := sha1.Sum([]byte(strings.Join(c, "|")))
	return hex.EncodeToString(sum[:])
}
