package settingsstore

import (
	"log/slog"

	"github.com/mrlokans/elibrary/internal/config"
)

// Repository is the key/value persistence the store reads through.
type Repository interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Priority: database > environment > default
type SettingsStore struct {
	repo     Repository
	defaults config.Notifications
}

func New(repo Repository, defaults config.Notifications) *SettingsStore {
	return &SettingsStore{repo: repo, defaults: defaults}
}

// lookup returns the stored value of key, treating read errors as unset.
func (s *SettingsStore) lookup(key string) (string, bool) {
	value, ok, err := s.repo.Get(key)
	if err != nil {
		slog.Warn("settings lookup failed", "key", key, "error", err)
		return "", false
	}
	return value, ok && value != ""
}
