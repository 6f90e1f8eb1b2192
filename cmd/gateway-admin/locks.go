package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cmpt474/mm-login-gateway/internal/bootstrap"
)

func runListLocks(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	client, err := bootstrap.ConnectRedis(ctx, bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	pattern := cmdCtx.Config.Redis.KeyPrefix + "*"
	cmdCtx.Logger.Info("scanning redis", "pattern", pattern)

	if err := writef(cmdCtx.Out, "\nIdentity locks in Redis\n"); err != nil {
		return err
	}
	total, err := writeLockKeys(ctx, cmdCtx.Out, client, client.Scan(ctx, 0, pattern, 100).Iterator())
	if err != nil {
		return err
	}
	if total == 0 {
		return writef(cmdCtx.Out, "(no locks held)\n")
	}
	return writef(cmdCtx.Out, "\nTotal locks: %d\n", total)
}

func writeLockKeys(ctx context.Context, w io.Writer, client redis.UniversalClient, iter *redis.ScanIterator) (int, error) {
	if iter == nil {
		return 0, errors.New("redis scan: nil iterator")
	}

	total := 0
	for iter.Next(ctx) {
		key := iter.Val()
		total++

		ttl, err := client.PTTL(ctx, key).Result()
		if err != nil {
			if werr := writef(w, "  %s (TTL: error: %v)\n", key, err); werr != nil {
				return 0, werr
			}
			continue
		}
		if err := writef(w, "  %s (TTL: %s)\n", key, renderTTL(ttl)); err != nil {
			return 0, err
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return total, nil
}

// renderTTL formats Redis TTL replies, which use negative sentinels.
func renderTTL(d time.Duration) string {
	switch {
	case d == -1 || d == -1*time.Second:
		return "no expiry"
	case d == -2 || d == -2*time.Second:
		return "key missing"
	default:
		return d.String()
	}
}
