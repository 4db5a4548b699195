package testkit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver registration
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// endpoint is a running (or externally supplied) dependency. ctr is nil for
// external endpoints, which are never terminated.
type endpoint struct {
	ctr  testcontainers.Container
	conn string
}

// Terminate stops the backing container, if the suite started one.
func (e *endpoint) Terminate(ctx context.Context) error {
	if e.ctr == nil {
		return nil
	}
	return e.ctr.Terminate(ctx)
}

// PostgresModule is the snapshot store database used by integration tests.
type PostgresModule struct{ endpoint }

// DSN returns a pgx-compatible connection string.
func (p *PostgresModule) DSN() string { return p.conn }

// RedisModule backs the rate cache, the artifact registry and the asynq queue.
type RedisModule struct{ endpoint }

// Addr returns host:port, the form go-redis and asynq expect.
func (r *RedisModule) Addr() string { return r.conn }

// StartPostgres starts a throwaway database named fxbot_<random>, unless
// cfg.PGDSN points at an existing one.
func StartPostgres(ctx context.Context, cfg *Config) (*PostgresModule, error) {
	if cfg.PGDSN != "" {
		return &PostgresModule{endpoint{conn: cfg.PGDSN}}, nil
	}

	ctr, err := postgres.Run(ctx,
		cfg.PGImage,
		postgres.WithDatabase("fxbot_"+randomSuffix()),
		postgres.WithUsername("fxbot"),
		postgres.WithPassword("fxbot"),
		testcontainers.WithWaitStrategyAndDeadline(cfg.StartupTimeout,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}
	return &PostgresModule{endpoint{ctr: ctr, conn: dsn}}, nil
}

// StartRedis starts a Redis container, unless cfg.RedisAddr is set.
func StartRedis(ctx context.Context, cfg *Config) (*RedisModule, error) {
	if cfg.RedisAddr != "" {
		return &RedisModule{endpoint{conn: cfg.RedisAddr}}, nil
	}

	ctr, err := tcredis.Run(ctx, cfg.RedisImage,
		testcontainers.WithWaitStrategyAndDeadline(cfg.StartupTimeout,
			wait.ForLog("Ready to accept connections"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start redis container: %w", err)
	}

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("redis connection string: %w", err)
	}
	u, err := url.Parse(uri)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("parse redis uri %q: %w", uri, err)
	}
	return &RedisModule{endpoint{ctr: ctr, conn: u.Host}}, nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "fallback"
	}
	return hex.EncodeToString(b)
}
