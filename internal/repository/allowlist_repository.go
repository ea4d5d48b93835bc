package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"anonbot/internal/entities"
	"anonbot/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AllowListRepository struct {
	db *pgxpool.Pool
}

func NewAllowListRepository(db *pgxpool.Pool) *AllowListRepository {
	return &AllowListRepository{db: db}
}

func (r *AllowListRepository) FindByLogin(ctx context.Context, login string) (*entities.AllowListEntry, error) {
	var e entities.AllowListEntry
	err := r.db.QueryRow(ctx,
		"SELECT id, login, first_name, last_name, consumed FROM allowlist WHERE login = $1",
		strings.ToLower(login)).Scan(&e.ID, &e.Login, &e.FirstName, &e.LastName, &e.Consumed)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *AllowListRepository) MarkConsumed(ctx context.Context, login string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE allowlist SET consumed = TRUE WHERE login = $1", strings.ToLower(login))
	return err
}

type allowListFile struct {
	Data []struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Login     string `json:"login"`
	} `json:"data"`
}

// SyncFromJSON loads the member list once. A populated table wins over the
// file so registrations are never lost on redeploys.
func (r *AllowListRepository) SyncFromJSON(ctx context.Context, path string) error {
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM allowlist").Scan(&count); err != nil {
		return fmt.Errorf("count allowlist: %w", err)
	}
	if count > 0 {
		logging.Log.Info("allowlist already imported, skipping", "entries", count)
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Log.Warn("allowlist file not found, skipping import", "path", path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var file allowListFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	imported, skipped := 0, 0
	for _, u := range file.Data {
		if u.Login == "" || u.FirstName == "" {
			skipped++
			continue
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO allowlist (login, first_name, last_name)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (login) DO UPDATE SET first_name = $2, last_name = $3`,
			strings.ToLower(u.Login), strings.TrimSpace(u.FirstName), strings.TrimSpace(u.LastName))
		if err != nil {
			logging.Log.Error("import allowlist entry", "login", u.Login, "error", err)
			skipped++
			continue
		}
		imported++
	}

	logging.Log.Info("allowlist import completed", "imported", imported, "skipped", skipped)
	return nil
}
