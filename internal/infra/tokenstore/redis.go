// Package tokenstore keeps the push tokens registered for each user in Redis.
package tokenstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

// setClient is the subset of redis.Cmdable the store needs.
type setClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// RedisTokenStore stores one Redis set of tokens per (org, user).
type RedisTokenStore struct {
	rdb setClient
}

// New wraps an existing Redis client.
func New(rdb redis.Cmdable) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

// Dial creates a Redis client from a redis:// URL and wraps it. The caller owns
// the returned client and must close it.
func Dial(redisURL string) (*RedisTokenStore, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	return &RedisTokenStore{rdb: rdb}, rdb, nil
}

func tokenKey(orgID, userID string) (string, error) {
	if strings.TrimSpace(orgID) == "" {
		return "", entity.ErrMissingTenant
	}
	if strings.TrimSpace(userID) == "" {
		return "", entity.ErrMissingID
	}
	return "push:tokens:" + orgID + ":" + userID, nil
}

// AddToken registers token for the user. Adding an existing token is a no-op.
func (s *RedisTokenStore) AddToken(ctx context.Context, orgID, userID, token string) error {
	key, err := tokenKey(orgID, userID)
	if err != nil {
		return fmt.Errorf("AddToken: %w", err)
	}
	if err := s.rdb.SAdd(ctx, key, token).Err(); err != nil {
		return fmt.Errorf("AddToken: %w", err)
	}
	return nil
}

// Tokens lists the user's registered tokens in no particular order.
func (s *RedisTokenStore) Tokens(ctx context.Context, orgID, userID string) ([]string, error) {
	key, err := tokenKey(orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("Tokens: %w", err)
	}
	tokens, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("Tokens: %w", err)
	}
	return tokens, nil
}

// RemoveToken deletes token from the user's set. Removing an unknown token is
// not an error.
func (s *RedisTokenStore) RemoveToken(ctx context.Context, orgID, userID, token string) error {
	key, err := tokenKey(orgID, userID)
	if err != nil {
		return fmt.Errorf("RemoveToken: %w", err)
	}
	if err := s.rdb.SRem(ctx, key, token).Err(); err != nil {
		return fmt.Errorf("RemoveToken: %w", err)
	}
	return nil
}
