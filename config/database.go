package config

import (
	"fmt"
	"strings"
	"time"
)

// StoreDriver selects the user store backend.
type StoreDriver string

const (
	// StoreDriverPostgres persists users in PostgreSQL.
	StoreDriverPostgres StoreDriver = "postgres"
	// StoreDriverMemory keeps users in process memory (development only).
	StoreDriverMemory StoreDriver = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreDriver.
func (d *StoreDriver) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "postgres", "memory":
		*d = StoreDriver(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreDriver: %q (valid options: postgres, memory)", v)
	}
}

// LockDriver selects how per-identity critical sections are serialised.
type LockDriver string

const (
	// LockDriverRedis uses a Redis lease shared by every replica.
	LockDriverRedis LockDriver = "redis"
	// LockDriverMemory uses an in-process keyed mutex (single replica only).
	LockDriverMemory LockDriver = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for LockDriver.
func (d *LockDriver) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "memory":
		*d = LockDriver(v)
		return nil
	default:
		return fmt.Errorf("invalid LockDriver: %q (valid options: redis, memory)", v)
	}
}

// StoreConfig groups backend selection.
type StoreConfig struct {
	Driver     StoreDriver   `env:"STORE_DRIVER"   envDefault:"postgres"`
	LockDriver LockDriver    `env:"LOCK_DRIVER"    envDefault:"memory"`
	LockTTL    time.Duration `env:"LOCK_TTL"       envDefault:"10s"`
}

// Validate rejects unusable combinations.
func (s *StoreConfig) Validate() error {
	if s.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive, got %s", s.LockTTL)
	}
	return nil
}

// UsesRedis reports whether a Redis connection is needed.
func (s *StoreConfig) UsesRedis() bool { return s.LockDriver == LockDriverRedis }

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"gateway"`
	Password string `env:"PASSWORD"                envDefault:"gateway"`
	Name     string `env:"NAME"                    envDefault:"gateway"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	KeyPrefix          string   `env:"KEY_PREFIX"           envDefault:"gateway:lock:"`
}
