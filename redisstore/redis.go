package redisstore

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-jwt-auth"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// Config for the Redis session token store. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: AUTH_REDIS_ADDR
	RedisAddr string `env:"AUTH_REDIS_ADDR,default=localhost:6379"`
	// RedisDB selects the logical database. ENV: AUTH_REDIS_DB
	RedisDB int `env:"AUTH_REDIS_DB,default=0"`
	// KeyPrefix for all keys. ENV: AUTH_REDIS_KEY_PREFIX
	KeyPrefix string `env:"AUTH_REDIS_KEY_PREFIX,default=auth:tokens:"`
}

// Store implements auth.SessionTokenRepository
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ auth.SessionTokenRepository = (*Store)(nil)

// New connects to Redis and checks the connection
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.RedisDB})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to ping redis")
	}
	return NewWithClient(cl, cfg.KeyPrefix), nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode redis config")
	}
	return New(ctx, cfg)
}

// NewWithClient wraps an existing client
func NewWithClient(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "auth:tokens:"
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(userID string) string { return s.keyPrefix + userID }

// PushAuthToken implements auth.SessionTokenRepository.
func (s *Store) PushAuthToken(ctx context.Context, userID, token string, max int) ([]string, int, error) {
	key := s.key(userID)

	var (
		push *redis.IntCmd
		list *redis.StringSliceCmd
	)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		push = pipe.RPush(ctx, key, token)
		if max > 0 {
			pipe.LTrim(ctx, key, int64(-max), -1)
		}
		list = pipe.LRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to push auth token")
	}

	tokens := list.Val()
	evicted := int(push.Val()) - len(tokens)
	if evicted < 0 {
		evicted = 0
	}

	return tokens, evicted, nil
}

// AuthTokens implements auth.SessionTokenRepository.
func (s *Store) AuthTokens(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.client.LRange(ctx, s.key(userID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load auth tokens")
	}
	if tokens == nil {
		tokens = []string{}
	}
	return tokens, nil
}

// RemoveAuthToken implements auth.SessionTokenRepository.
func (s *Store) RemoveAuthToken(ctx context.Context, userID, token string) error {
	if err := s.client.LRem(ctx, s.key(userID), 0, token).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove auth token")
	}
	return nil
}

// ClearAuthTokens implements auth.SessionTokenRepository.
func (s *Store) ClearAuthTokens(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear auth tokens")
	}
	return nil
}
