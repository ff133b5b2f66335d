package sysconfig

import "time"

// Config is the global runtime state read on every reserve.
type Config struct {
	AIEnabled         bool      `db:"ai_enabled" json:"aiEnabled"`
	DailyLimitPerUser int       `db:"daily_limit_per_user" json:"dailyLimitPerUser"`
	MaintenanceMode   bool      `db:"maintenance_mode" json:"maintenanceMode"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}
