package cron

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lucasferro/license-server/model"
)

const logRetention = 90 * 24 * time.Hour

// SnapshotKeyStats counts license keys by lifecycle status and records the
// totals on the job log. Runs hourly; useful for dashboards without
// querying the key table live.
func (m *CronManager) SnapshotKeyStats() {
	jobName := "key_stats_snapshot"
	now := time.Now()

	var keys []model.LicenseKey
	if err := m.db.Find(&keys).Error; err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to load keys: %w", err))
		return
	}

	counts := map[model.KeyStatus]int{}
	for i := range keys {
		counts[keys[i].Status(now)]++
	}

	stats := map[string]int{
		"total":    len(keys),
		"active":   counts[model.KeyStatusActive],
		"consumed": counts[model.KeyStatusConsumed],
		"disabled": counts[model.KeyStatusDisabled],
		"expired":  counts[model.KeyStatusExpired],
	}

	metadata, _ := json.Marshal(stats)
	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Update("metadata", string(metadata))

	m.logJobComplete(jobName, fmt.Sprintf(
		"%d keys: %d active, %d consumed, %d disabled, %d expired",
		stats["total"], stats["active"], stats["consumed"], stats["disabled"], stats["expired"],
	))
}

// CleanupOldLogs removes audit logs and cron job logs older than the
// retention window. License keys themselves are never touched here.
func (m *CronManager) CleanupOldLogs() {
	jobName := "cleanup_old_logs"
	cutoff := time.Now().Add(-logRetention)

	auditResult := m.db.Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&model.AdminAuditLog{})
	if auditResult.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete old audit logs: %w", auditResult.Error))
		return
	}

	cronResult := m.db.Unscoped().
		Where("created_at < ? AND status != ?", cutoff, "running").
		Delete(&model.CronJobLog{})
	if cronResult.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete old job logs: %w", cronResult.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf(
		"Deleted %d audit logs and %d job logs older than %s",
		auditResult.RowsAffected, cronResult.RowsAffected, cutoff.Format("2006-01-02"),
	))
}
