package models

import "time"

// Run journals one invocation of a mutating tool (cmsops_runs).
type Run struct {
	ID         uint       `gorm:"primaryKey"`
	Command    string     `gorm:"size:128;not null;index"`
	Args       string     `gorm:"type:text"`
	Operator   string     `gorm:"size:255"`
	DryRun     bool       `gorm:"not null;default:false"`
	Status     string     `gorm:"size:16;not null;default:running"`
	Error      string     `gorm:"type:text"`
	StartedAt  time.Time  `gorm:"not null"`
	FinishedAt *time.Time
}

func (Run) TableName() string { return "cmsops_runs" }

const (
	RunRunning = "running"
	RunOK      = "ok"
	RunFailed  = "failed"
)
