// Package cache implements the redis-backed caches: provider bearer tokens
// shared across processes, and the wallet balance view behind the
// high-frequency polling endpoint.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Config holds the redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings redis.
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Compile-time checks
var (
	_ ports.TokenCache   = (*TokenCache)(nil)
	_ ports.BalanceCache = (*BalanceCache)(nil)
)

// TokenCache stores provider bearer tokens.
type TokenCache struct {
	client *redis.Client
}

// NewTokenCache creates a TokenCache.
func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

// Get returns the cached token or "" when absent.
func (c *TokenCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("token cache get: %w", err)
	}
	return val, nil
}

// Set stores a token with its TTL.
func (c *TokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("token cache set: %w", err)
	}
	return nil
}

// balanceEntry is the stored JSON shape.
type balanceEntry struct {
	BalanceKobo   int64     `json:"balance_kobo"`
	ReservedKobo  int64     `json:"reserved_kobo"`
	AvailableKobo int64     `json:"available_kobo"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// BalanceCache stores the polling view of wallet balances.
type BalanceCache struct {
	client *redis.Client
}

// NewBalanceCache creates a BalanceCache.
func NewBalanceCache(client *redis.Client) *BalanceCache {
	return &BalanceCache{client: client}
}

func balanceKey(userID uuid.UUID) string {
	return "balance:" + userID.String()
}

// Get returns the cached balance or nil on miss.
func (c *BalanceCache) Get(ctx context.Context, userID uuid.UUID) (*ports.CachedBalance, error) {
	raw, err := c.client.Get(ctx, balanceKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("balance cache get: %w", err)
	}

	var entry balanceEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Treat a corrupt entry as a miss; the next Set overwrites it.
		return nil, nil
	}
	return &ports.CachedBalance{
		Balance:   valueobjects.FromKobo(entry.BalanceKobo),
		Reserved:  valueobjects.FromKobo(entry.ReservedKobo),
		Available: valueobjects.FromKobo(entry.AvailableKobo),
		FetchedAt: entry.FetchedAt,
	}, nil
}

// Set stores a balance snapshot with a TTL.
func (c *BalanceCache) Set(ctx context.Context, userID uuid.UUID, balance ports.CachedBalance, ttl time.Duration) error {
	raw, err := json.Marshal(balanceEntry{
		BalanceKobo:   balance.Balance.Kobo(),
		ReservedKobo:  balance.Reserved.Kobo(),
		AvailableKobo: balance.Available.Kobo(),
		FetchedAt:     balance.FetchedAt,
	})
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, balanceKey(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("balance cache set: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot after a wallet mutation.
func (c *BalanceCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, balanceKey(userID)).Err(); err != nil {
		return fmt.Errorf("balance cache invalidate: %w", err)
	}
	return nil
}
