package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/m3rciful/packbot/internal/models"
)

// GetSetting returns the value for key, or the fallback when unset.
func (s *Store) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// GetBoolSetting parses a boolean setting, treating junk as the fallback.
func (s *Store) GetBoolSetting(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, err := s.GetSetting(ctx, key, strconv.FormatBool(fallback))
	if err != nil {
		return fallback, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, nil
	}
	return v, nil
}

// SetSetting upserts an operator toggle.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// ListSettings returns all operator toggles for the admin panel.
func (s *Store) ListSettings(ctx context.Context) ([]models.Setting, error) {
	var out []models.Setting
	if err := s.db.SelectContext(ctx, &out, `SELECT key, value FROM settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return out, nil
}
