package redis

// Package redis provides Redis-based adapters for the login gateway.

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

const (
	defaultPrefix    = "gateway:lock:"
	defaultTTL       = 10 * time.Second
	defaultRetryWait = 25 * time.Millisecond
)

// ErrLockTimeout is returned when the context ends before the lock is acquired.
var ErrLockTimeout = errors.New("identity lock: not acquired before deadline")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ ports.IdentityLocker = (*IdentityLock)(nil)

// IdentityLock serialises per-identity critical sections across gateway replicas
// using SET NX PX with a random owner token.
type IdentityLock struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
}

// IdentityLockOptions configures an IdentityLock.
type IdentityLockOptions struct {
	Prefix string
	// TTL bounds how long a crashed holder can block others.
	TTL       time.Duration
	RetryWait time.Duration
}

// NewIdentityLock creates a Redis-backed identity lock.
func NewIdentityLock(client redis.UniversalClient, opts IdentityLockOptions) *IdentityLock {
	l := &IdentityLock{
		client:    client,
		prefix:    opts.Prefix,
		ttl:       opts.TTL,
		retryWait: opts.RetryWait,
	}
	if l.prefix == "" {
		l.prefix = defaultPrefix
	}
	if l.ttl <= 0 {
		l.ttl = defaultTTL
	}
	if l.retryWait <= 0 {
		l.retryWait = defaultRetryWait
	}
	return l
}

// Lock blocks until identity is held or ctx ends.
func (l *IdentityLock) Lock(ctx context.Context, identity string) (func(), error) {
	if identity == "" {
		return nil, errors.New("identity lock: identity cannot be empty")
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key := l.prefix + identity

	ticker := time.NewTicker(l.retryWait)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// releaser runs on a fresh context so a cancelled request still frees its key.
func (l *IdentityLock) releaser(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("identity lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
