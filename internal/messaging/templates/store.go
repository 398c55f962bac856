package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store persists per-site template overrides in Redis.
type Store struct {
	redis    *redis.Client
	defaults Set
}

// NewStore creates a template store. A nil client yields a store that only serves defaults.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient, defaults: DefaultSet()}
}

func (s *Store) key(siteID string) string {
	return fmt.Sprintf("site:templates:%s", siteID)
}

// Get returns the site's effective template set (defaults merged with overrides).
func (s *Store) Get(ctx context.Context, siteID string) (Set, error) {
	overrides, err := s.Overrides(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return s.defaults.Merge(overrides), nil
}

// Template returns the effective template for one kind.
func (s *Store) Template(ctx context.Context, siteID string, kind Kind) (string, error) {
	set, err := s.Get(ctx, siteID)
	if err != nil {
		return "", err
	}
	return set[kind], nil
}

// Overrides returns only the site-specific templates.
func (s *Store) Overrides(ctx context.Context, siteID string) (Set, error) {
	if s == nil || s.redis == nil {
		return Set{}, nil
	}
	data, err := s.redis.Get(ctx, s.key(siteID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("templates: get overrides: %w", err)
	}
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("templates: unmarshal overrides: %w", err)
	}
	return set, nil
}

// Put replaces the site's overrides. Unknown kinds are rejected.
func (s *Store) Put(ctx context.Context, siteID string, set Set) error {
	if s == nil || s.redis == nil {
		return errors.New("templates: store not configured")
	}
	for kind := range set {
		if _, err := ParseKind(string(kind)); err != nil {
			return err
		}
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("templates: marshal overrides: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(siteID), data, 0).Err(); err != nil {
		return fmt.Errorf("templates: set overrides: %w", err)
	}
	return nil
}
