package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/malekaidoudi/creche-sub003/internal/models"
)

// SettingRepository handles persistence of admin settings.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository constructs the repository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns a single setting by key.
func (r *SettingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	const query = `SELECT key, value, type, public, updated_by, updated_at FROM settings WHERE key = $1 LIMIT 1`
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return &setting, nil
}

// List returns all settings; publicOnly restricts to the public subset.
func (r *SettingRepository) List(ctx context.Context, publicOnly bool) ([]models.Setting, error) {
	query := `SELECT key, value, type, public, updated_by, updated_at FROM settings`
	if publicOnly {
		query += ` WHERE public = TRUE`
	}
	query += ` ORDER BY key`
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Upsert writes a setting, creating or replacing the row.
func (r *SettingRepository) Upsert(ctx context.Context, setting *models.Setting) error {
	setting.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO settings (key, value, type, public, updated_by, updated_at)
        VALUES (:key, :value, :type, :public, :updated_by, :updated_at)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type,
        public = EXCLUDED.public, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
