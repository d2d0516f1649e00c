package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/semdex/semdex/pkg/types"
)

// Fixed setting keys consumed by external collaborators.
const (
	SettingAllowedDirectories  = "allowed_directories"
	SettingExcludedDirectories = "excluded_directories"
)

// GetSetting returns the value for name, or ErrNotFound.
func (s *SQLiteStore) GetSetting(ctx context.Context, name string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT setting_value FROM search_settings WHERE setting_name = ?", name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", types.Storagef(err, "failed to get setting %s", name)
	}
	return value.String, nil
}

// SetSetting upserts a setting, preserving created_date on update.
func (s *SQLiteStore) SetSetting(ctx context.Context, name, value string) error {
	query := `
		INSERT INTO search_settings (setting_name, setting_value, created_date, modified_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(setting_name) DO UPDATE SET
			setting_value = excluded.setting_value,
			modified_date = excluded.modified_date
	`
	now := time.Now()
	if _, err := s.db.ExecContext(ctx, query, name, value, now, now); err != nil {
		return types.Storagef(err, "failed to set setting %s", name)
	}
	return nil
}

// GetDirectorySettings reads the allow/deny directory lists. Missing keys
// yield empty lists rather than an error.
func (s *SQLiteStore) GetDirectorySettings(ctx context.Context) (*types.DirectorySettings, error) {
	settings := &types.DirectorySettings{
		AllowedDirectories:  []string{},
		ExcludedDirectories: []string{},
	}

	allowed, err := s.GetSetting(ctx, SettingAllowedDirectories)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if allowed != "" {
		if err := json.Unmarshal([]byte(allowed), &settings.AllowedDirectories); err != nil {
			return nil, types.Storagef(err, "failed to decode allowed directories")
		}
	}

	excluded, err := s.GetSetting(ctx, SettingExcludedDirectories)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if excluded != "" {
		if err := json.Unmarshal([]byte(excluded), &settings.ExcludedDirectories); err != nil {
			return nil, types.Storagef(err, "failed to decode excluded directories")
		}
	}

	return settings, nil
}

// SetDirectorySettings persists both directory lists.
func (s *SQLiteStore) SetDirectorySettings(ctx context.Context, settings *types.DirectorySettings) error {
	allowed, err := json.Marshal(settings.AllowedDirectories)
	if err != nil {
		return types.Storagef(err, "failed to encode allowed directories")
	}
	excluded, err := json.Marshal(settings.ExcludedDirectories)
	if err != nil {
		return types.Storagef(err, "failed to encode excluded directories")
	}

	if err := s.SetSetting(ctx, SettingAllowedDirectories, string(allowed)); err != nil {
		return err
	}
	return s.SetSetting(ctx, SettingExcludedDirectories, string(excluded))
}
