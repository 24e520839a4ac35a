package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Notification schedule overrides
	SettingKeyDueSoonSchedule = "notifications_due_soon_schedule"
	SettingKeyOverdueSchedule = "notifications_overdue_schedule"

	// Last sweep results, one group per sweep kind. The kind name is appended.
	SettingKeySweepLastAtPrefix      = "sweep_last_at_"
	SettingKeySweepLastStatusPrefix  = "sweep_last_status_"
	SettingKeySweepLastMessagePrefix = "sweep_last_message_"
	SettingKeySweepNotifiedPrefix    = "sweep_notified_"
)
