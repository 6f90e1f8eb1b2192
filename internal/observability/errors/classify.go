// Package errors reduces server-side failure causes to a small, fixed set of metric label values.
package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	goerrors "errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// Cause classes reported by Classify.
const (
	ClassTimeout  = "timeout"
	ClassCanceled = "canceled"
	ClassPostgres = "postgres"
	ClassRedis    = "redis"
	ClassNetwork  = "network"
	ClassOther    = "other"
)

// Classify walks the error chain and names the backend or condition that caused it.
// The result is bounded so it can be used as a Prometheus label.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if goerrors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if goerrors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}

	var pgErr *pgconn.PgError
	var connErr *pgconn.ConnectError
	if goerrors.As(err, &pgErr) || goerrors.As(err, &connErr) ||
		goerrors.Is(err, sql.ErrConnDone) || goerrors.Is(err, driver.ErrBadConn) {
		return ClassPostgres
	}

	var redisErr redis.Error
	if goerrors.As(err, &redisErr) || goerrors.Is(err, redis.ErrClosed) {
		return ClassRedis
	}

	if netErr != nil {
		return ClassNetwork
	}
	return ClassOther
}
