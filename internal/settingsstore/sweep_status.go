package settingsstore

import (
	"strconv"
	"time"

	"github.com/mrlokans/elibrary/internal/entities"
)

// SweepStatus is the outcome of the last run of one sweep kind.
type SweepStatus struct {
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Status    string     `json:"status,omitempty"` // "success", "failed", ""
	Message   string     `json:"message,omitempty"`
	Notified  int        `json:"notified"`
}

// GetSweepStatus returns the last recorded status of a sweep kind.
func (s *SettingsStore) GetSweepStatus(kind string) SweepStatus {
	status := SweepStatus{}

	if value, ok := s.lookup(entities.SettingKeySweepLastAtPrefix + kind); ok {
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			status.LastRunAt = &ts
		}
	}
	if value, ok := s.lookup(entities.SettingKeySweepLastStatusPrefix + kind); ok {
		status.Status = value
	}
	if value, ok := s.lookup(entities.SettingKeySweepLastMessagePrefix + kind); ok {
		status.Message = value
	}
	if value, ok := s.lookup(entities.SettingKeySweepNotifiedPrefix + kind); ok {
		if n, err := strconv.Atoi(value); err == nil {
			status.Notified = n
		}
	}

	return status
}

// SetSweepStatus records the outcome of a sweep run at the given time.
func (s *SettingsStore) SetSweepStatus(kind string, at time.Time, status, message string, notified int) error {
	values := map[string]string{
		entities.SettingKeySweepLastAtPrefix + kind:      at.UTC().Format(time.RFC3339),
		entities.SettingKeySweepLastStatusPrefix + kind:  status,
		entities.SettingKeySweepLastMessagePrefix + kind: message,
		entities.SettingKeySweepNotifiedPrefix + kind:    strconv.Itoa(notified),
	}
	for key, value := range values {
		if err := s.repo.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// LastCheck returns the most recent run time across the given sweep kinds.
func (s *SettingsStore) LastCheck(kinds ...string) *time.Time {
	var latest *time.Time
	for _, kind := range kinds {
		st := s.GetSweepStatus(kind)
		if st.LastRunAt != nil && (latest == nil || st.LastRunAt.After(*latest)) {
			latest = st.LastRunAt
		}
	}
	return latest
}
