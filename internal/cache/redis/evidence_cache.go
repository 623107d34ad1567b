package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// EvidenceCache implements domain.EvidenceCache using Redis string values.
// Search results are stored as a JSON blob at key "evidence:{sha256(query)}"
// with the caller-provided TTL, so repeated evaluations of the same market
// inside the TTL never re-hit the search API.
type EvidenceCache struct {
	rdb *redis.Client
}

var _ domain.EvidenceCache = (*EvidenceCache)(nil)

// NewEvidenceCache creates an EvidenceCache backed by the given Client.
func NewEvidenceCache(c *Client) *EvidenceCache {
	return &EvidenceCache{rdb: c.Underlying()}
}

func evidenceKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "evidence:" + hex.EncodeToString(sum[:16])
}

// Get returns the cached evidence for a query, or domain.ErrNotFound when the
// query has no fresh entry.
func (ec *EvidenceCache) Get(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	data, err := ec.rdb.Get(ctx, evidenceKey(query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get evidence: %w", err)
	}

	var items []domain.EvidenceItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("redis: decode evidence: %w", err)
	}
	return items, nil
}

// Set stores the evidence for a query with the given TTL. An empty result set
// is cached too, so a market with no news coverage does not re-query on every
// scan.
func (ec *EvidenceCache) Set(ctx context.Context, query string, items []domain.EvidenceItem, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("redis: encode evidence: %w", err)
	}
	if err := ec.rdb.Set(ctx, evidenceKey(query), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set evidence: %w", err)
	}
	return nil
}
