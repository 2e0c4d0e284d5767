package cache

import (
	"bufio"
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yildizm/logsift/internal/logger"
	"github.com/yildizm/logsift/internal/metrics"
)

// Options configures a Redis connection
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// RedisGateway is a Gateway backed by one Redis database
type RedisGateway struct {
	client  *redis.Client
	db      int
	log     *logger.Logger
	metrics *metrics.Registry
}

// New connects to Redis and pings it once. When the ping fails the cache
// is disabled for the lifetime of the process and a NoopGateway is returned.
func New(ctx context.Context, opts Options, log *logger.Logger, m *metrics.Registry) Gateway {
	if log == nil {
		log = logger.Nop()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.ReadTimeout,
		MaxRetries:   -1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis connection to %s db %d failed: %v; operating without cache", opts.Addr, opts.DB, err)
		_ = client.Close()
		return NoopGateway{}
	}

	log.Info("redis connected: %s db %d", opts.Addr, opts.DB)
	return &RedisGateway{client: client, db: opts.DB, log: log, metrics: m}
}

func (g *RedisGateway) Get(ctx context.Context, content, prefix string) ([]byte, bool) {
	key := Key(prefix, content)
	data, err := g.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		g.log.Debug("cache miss: %s", key)
		g.metrics.CacheLookup(prefix, false)
		return nil, false
	case err != nil:
		g.log.Warn("cache read error for %s: %v", key, err)
		g.metrics.CacheError("get")
		g.metrics.CacheLookup(prefix, false)
		return nil, false
	}
	g.log.Debug("cache hit: %s", key)
	g.metrics.CacheLookup(prefix, true)
	return data, true
}

func (g *RedisGateway) Set(ctx context.Context, content string, payload []byte, prefix string, ttl time.Duration) {
	key := Key(prefix, content)
	if err := g.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		g.log.Warn("cache write error for %s: %v", key, err)
		g.metrics.CacheError("set")
		return
	}
	g.log.Debug("cached %s (ttl %s)", key, ttl)
}

func (g *RedisGateway) Stats(ctx context.Context) Stats {
	keys, err := g.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{Status: StatusError, DB: g.db, Error: err.Error()}
	}
	stats := Stats{Status: StatusConnected, DB: g.db, Keys: keys, UsedMemory: "N/A"}

	if hints, err := g.client.Keys(ctx, PrefixHint+":*").Result(); err == nil {
		stats.HintKeys = len(hints)
	}
	if batches, err := g.client.Keys(ctx, PrefixHintBatch+":*").Result(); err == nil {
		stats.BatchKeys = len(batches)
	}

	// Not every server exposes the memory and stats sections
	if info, err := g.client.Info(ctx, "memory", "stats").Result(); err == nil {
		fields := parseInfo(info)
		if v, ok := fields["used_memory_human"]; ok {
			stats.UsedMemory = v
		}
		stats.Hits, _ = strconv.ParseInt(fields["keyspace_hits"], 10, 64)
		stats.Misses, _ = strconv.ParseInt(fields["keyspace_misses"], 10, 64)
	} else {
		g.log.Debug("redis INFO unavailable: %v", err)
	}
	stats.HitRate = hitRate(stats.Hits, stats.Misses)
	return stats
}

func (g *RedisGateway) Clear(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		pattern = DefaultClearPattern
	}
	keys, err := g.client.Keys(ctx, pattern).Result()
	if err != nil {
		g.metrics.CacheError("clear")
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := g.client.Del(ctx, keys...).Result()
	if err != nil {
		g.metrics.CacheError("clear")
		return 0, err
	}
	g.log.Info("cleared %d cache entries matching %s", deleted, pattern)
	return int(deleted), nil
}

func (g *RedisGateway) Connected() bool {
	return true
}

func (g *RedisGateway) Close() error {
	return g.client.Close()
}

// hitRate is hits over lookups as a percentage rounded to two decimals
func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total < 1 {
		total = 1
	}
	return math.Round(float64(hits)/float64(total)*100*100) / 100
}

// parseInfo reads the "field:value" lines of an INFO reply
func parseInfo(info string) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			fields[k] = v
		}
	}
	return fields
}
