package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cmpt474/mm-login-gateway/internal/data/pgxutil"
	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	apperrors "github.com/cmpt474/mm-login-gateway/internal/errors"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

var _ ports.UserStore = (*UserRepo)(nil)

// UserRepo implements ports.UserStore using PostgreSQL.
// Uniqueness per identity is enforced by the primary key, so Create is safe under concurrency.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo. A nil TimeProvider uses the system clock.
func NewUserRepo(db *sql.DB, tp TimeProvider) *UserRepo {
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &UserRepo{DB: db, timeProvider: tp}
}

const userColumns = `identity, role, auth_hash, created_at, updated_at`

type userRow struct {
	Identity  string    `db:"identity"`
	Role      string    `db:"role"`
	AuthHash  *string   `db:"auth_hash"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r userRow) toDomain() domainauth.User {
	u := domainauth.User{
		Identity:  r.Identity,
		Role:      domainauth.Role(r.Role),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.AuthHash != nil {
		u.AuthHash = *r.AuthHash
	}
	return u
}

// Exists reports whether a record exists for identity.
func (r *UserRepo) Exists(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return false, nil
	}
	var exists bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE identity = $1)`, identity).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("user exists: %w", apperrors.MapDBError(err))
	}
	return exists, nil
}

// Get returns the record for identity or domainauth.ErrUserNotFound.
func (r *UserRepo) Get(ctx context.Context, identity string) (domainauth.User, error) {
	if identity == "" {
		return domainauth.User{}, domainauth.ErrUserNotFound
	}
	var row userRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE identity = $1`, identity)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		row, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.User{}, domainauth.ErrUserNotFound
		}
		return domainauth.User{}, fmt.Errorf("get user: %w", apperrors.MapDBError(err))
	}
	return row.toDomain(), nil
}

// Create inserts a record unless the identity already exists, reporting whether a row was written.
func (r *UserRepo) Create(ctx context.Context, nu domainauth.NewUser) (bool, error) {
	if strings.TrimSpace(nu.Identity) == "" {
		return false, ErrIdentityRequired
	}
	role := nu.Role
	if role == "" {
		role = domainauth.DefaultRole
	}
	if !role.Valid() {
		return false, ErrInvalidRole
	}
	var authHash *string
	if nu.AuthHash != "" {
		authHash = &nu.AuthHash
	}

	now := r.timeProvider.Now().UTC()
	var inserted int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			INSERT INTO users (identity, role, auth_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (identity) DO NOTHING
		`, nu.Identity, string(role), authHash, now)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("create user: %w", apperrors.MapDBError(err))
	}
	return inserted == 1, nil
}

// Update merges upd into the existing record, reporting false when identity is unknown.
func (r *UserRepo) Update(ctx context.Context, identity string, upd domainauth.UserUpdate) (bool, error) {
	if identity == "" {
		return false, ErrIdentityRequired
	}
	if upd.IsEmpty() {
		return r.Exists(ctx, identity)
	}
	if !upd.Role.Valid() {
		return false, ErrInvalidRole
	}

	var updated int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			UPDATE users SET role = $2, updated_at = $3
			WHERE identity = $1
		`, identity, string(*upd.Role), r.timeProvider.Now().UTC())
		if err != nil {
			return err
		}
		updated = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update user: %w", apperrors.MapDBError(err))
	}
	return updated == 1, nil
}
