package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultLabelTTL is the default TTL for cached labels (7 days)
const DefaultLabelTTL = 7 * 24 * time.Hour

// LabelCache remembers which category the classifier picked for a payload,
// so re-uploading the same bookmark does not cost another workflow run.
type LabelCache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

// NewLabelCache creates a label cache scoped to namespace (see Namespace).
// A non-positive ttl falls back to DefaultLabelTTL.
func NewLabelCache(client *redis.Client, ttl time.Duration, namespace string) *LabelCache {
	if ttl <= 0 {
		ttl = DefaultLabelTTL
	}
	return &LabelCache{
		client:    client,
		ttl:       ttl,
		namespace: namespace,
	}
}

// GetLabel returns the cached label for a canonical payload, or "" on a miss
func (c *LabelCache) GetLabel(ctx context.Context, canonicalPayload string) (string, error) {
	label, err := c.client.Get(ctx, LabelKey(c.namespace, canonicalPayload)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("failed to get cached label: %w", err)
	}
	return label, nil
}

// SetLabel stores the label for a canonical payload
func (c *LabelCache) SetLabel(ctx context.Context, canonicalPayload, label string) error {
	if err := c.client.Set(ctx, LabelKey(c.namespace, canonicalPayload), label, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache label: %w", err)
	}
	return nil
}

// FlushLabels removes all cached labels
func (c *LabelCache) FlushLabels(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyPrefixLabel+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete label key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush labels: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *LabelCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
