// Package integration starts the real infrastructure the services run on.
// Its tests carry the integration build tag.
package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type Env struct {
	PG       *postgres.PostgresContainer
	Kafka    *kafka.KafkaContainer
	Redis    *tcredis.RedisContainer
	PGURL    string
	KAddr    []string
	RedisURL string
}

func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	env := &Env{}
	var err error
	env.PG, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("invoicing"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	if env.PGURL, err = env.PG.ConnectionString(ctx, "sslmode=disable"); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	env.Kafka, err = kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("invoicing-test"),
	)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	if env.KAddr, err = env.Kafka.Brokers(ctx); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	env.Redis, err = tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	if env.RedisURL, err = env.Redis.ConnectionString(ctx); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	return env, nil
}

// Database creates an empty database and returns a pool on it, so that each
// test owns its tables and its outbox.
func (e *Env) Database(ctx context.Context, name string) (*pgxpool.Pool, error) {
	admin, err := pgxpool.New(ctx, e.PGURL)
	if err != nil {
		return nil, err
	}
	defer admin.Close()
	if _, err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE %q", name)); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(e.PGURL)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.Database = name
	cfg.MaxConns = 20
	return pgxpool.NewWithConfig(ctx, cfg)
}

func (e *Env) RedisClient() (*redis.Client, error) {
	opts, err := redis.ParseURL(e.RedisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (e *Env) Teardown(ctx context.Context) {
	if e.Redis != nil {
		_ = e.Redis.Terminate(ctx)
	}
	if e.Kafka != nil {
		_ = e.Kafka.Terminate(ctx)
	}
	if e.PG != nil {
		_ = e.PG.Terminate(ctx)
	}
}
