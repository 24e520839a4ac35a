package settingsstore

import (
	"fmt"

	"github.com/mrlokans/elibrary/internal/entities"
)

// ScheduleInfo describes the effective notification schedules and where
// each value came from ("database" or "environment").
type ScheduleInfo struct {
	DueSoon            string `json:"due_soon"`
	DueSoonSource      string `json:"due_soon_source"`
	DueSoonDescription string `json:"due_soon_description"`
	Overdue            string `json:"overdue"`
	OverdueSource      string `json:"overdue_source"`
	OverdueDescription string `json:"overdue_description"`
}

// GetDueSoonSchedule returns the cron schedule of the due-soon sweep.
func (s *SettingsStore) GetDueSoonSchedule() string {
	if value, ok := s.lookup(entities.SettingKeyDueSoonSchedule); ok {
		return value
	}
	return s.defaults.DueSoonSchedule
}

// GetOverdueSchedule returns the cron schedule of the overdue sweep.
func (s *SettingsStore) GetOverdueSchedule() string {
	if value, ok := s.lookup(entities.SettingKeyOverdueSchedule); ok {
		return value
	}
	return s.defaults.OverdueSchedule
}

func (s *SettingsStore) GetScheduleInfo() ScheduleInfo {
	dueSoon := s.GetDueSoonSchedule()
	overdue := s.GetOverdueSchedule()
	return ScheduleInfo{
		DueSoon:            dueSoon,
		DueSoonSource:      s.source(entities.SettingKeyDueSoonSchedule),
		DueSoonDescription: GetCronDescription(dueSoon),
		Overdue:            overdue,
		OverdueSource:      s.source(entities.SettingKeyOverdueSchedule),
		OverdueDescription: GetCronDescription(overdue),
	}
}

// SetSchedules stores schedule overrides. Empty values leave the current
// setting untouched; invalid expressions are rejected before anything is saved.
func (s *SettingsStore) SetSchedules(dueSoon, overdue string) error {
	for _, schedule := range []string{dueSoon, overdue} {
		if schedule == "" {
			continue
		}
		if err := ValidateCronSchedule(schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
		}
	}
	if dueSoon != "" {
		if err := s.repo.Set(entities.SettingKeyDueSoonSchedule, dueSoon); err != nil {
			return err
		}
	}
	if overdue != "" {
		if err := s.repo.Set(entities.SettingKeyOverdueSchedule, overdue); err != nil {
			return err
		}
	}
	return nil
}

// ClearSchedules removes database overrides, reverting to the environment.
func (s *SettingsStore) ClearSchedules() error {
	for _, key := range []string{entities.SettingKeyDueSoonSchedule, entities.SettingKeyOverdueSchedule} {
		if err := s.repo.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettingsStore) source(key string) string {
	if _, ok := s.lookup(key); ok {
		return "database"
	}
	return "environment"
}
