package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			telegram_id BIGINT UNIQUE NOT NULL,
			username VARCHAR(64) UNIQUE NOT NULL,
			username_original VARCHAR(64) NOT NULL,
			first_name VARCHAR(128) NOT NULL,
			last_name VARCHAR(128) NOT NULL DEFAULT '',
			login VARCHAR(64) UNIQUE NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			message_count INT NOT NULL DEFAULT 0,
			last_message_date TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			type VARCHAR(16) NOT NULL,
			content_kind VARCHAR(16) NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			file_id TEXT NOT NULL DEFAULT '',
			is_anonymous BOOLEAN NOT NULL,
			sender_id BIGINT NOT NULL REFERENCES users(id),
			receiver_id BIGINT REFERENCES users(id),
			parent_id BIGINT REFERENCES messages(id),
			status VARCHAR(16) NOT NULL DEFAULT 'DELIVERED',
			reject_reason TEXT NOT NULL DEFAULT '',
			published_msg_id BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_id);
	`)
	if err != nil {
		return fmt.Errorf("create messages parent index: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS allowlist (
			id BIGSERIAL PRIMARY KEY,
			login VARCHAR(64) UNIQUE NOT NULL,
			first_name VARCHAR(128) NOT NULL,
			last_name VARCHAR(128) NOT NULL DEFAULT '',
			consumed BOOLEAN NOT NULL DEFAULT FALSE
		);
	`)
	if err != nil {
		return fmt.Errorf("create allowlist table: %w", err)
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
