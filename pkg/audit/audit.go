// Package audit journals mutating tool runs into cmsops_runs.
package audit

import (
	"context"
	"os"
	"os/user"
	"strings"
	"time"

	"cmsops/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder writes run rows. A nil Recorder, or one without a DB, records
// nothing, so commands that only talk REST can still call it.
type Recorder struct {
	DB  *gorm.DB
	Log *zap.Logger
	now func() time.Time
}

func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{DB: db, Log: log, now: time.Now}
}

func (r *Recorder) enabled() bool { return r != nil && r.DB != nil }

func (r *Recorder) clock() time.Time {
	if r != nil && r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Start inserts a running row. Journal failures are logged, never returned:
// the table may not exist before the baseline migration.
func (r *Recorder) Start(ctx context.Context, command string, args []string, dryRun bool) *models.Run {
	run := &models.Run{
		Command:   command,
		Args:      strings.Join(args, " "),
		Operator:  Operator(),
		DryRun:    dryRun,
		Status:    models.RunRunning,
		StartedAt: r.clock(),
	}
	if !r.enabled() {
		return run
	}
	if err := r.DB.WithContext(ctx).Create(run).Error; err != nil {
		r.Log.Warn("audit start failed", zap.String("command", command), zap.Error(err))
	}
	return run
}

// Finish closes the row with ok or failed.
func (r *Recorder) Finish(ctx context.Context, run *models.Run, runErr error) {
	if run == nil {
		return
	}
	now := r.clock()
	run.FinishedAt = &now
	run.Status = models.RunOK
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	}
	if !r.enabled() || run.ID == 0 {
		return
	}
	err := r.DB.WithContext(ctx).Model(&models.Run{}).Where("id = ?", run.ID).Updates(map[string]any{
		"status":      run.Status,
		"error":       run.Error,
		"finished_at": run.FinishedAt,
	}).Error
	if err != nil {
		r.Log.Warn("audit finish failed", zap.Uint("id", run.ID), zap.Error(err))
	}
}

// Recent returns the latest runs, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.Run, error) {
	var runs []models.Run
	if !r.enabled() {
		return runs, nil
	}
	err := r.DB.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// Operator names whoever runs the tool: CMSOPS_OPERATOR, else the OS user.
func Operator() string {
	if op := os.Getenv("CMSOPS_OPERATOR"); op != "" {
		return op
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}
