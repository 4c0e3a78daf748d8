// Package cleanup はスナップショットの保持期間管理ジョブを提供する。
// 保持期間（デフォルト7日）を超過した日付のスナップショットを削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/castradar/internal/model"
)

// DefaultRetentionDays はスナップショットの既定の保持日数。
const DefaultRetentionDays = 7

// Pruner は指定日付より前のスナップショットを削除するインターフェース。
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoffDate string) (int64, error)
}

// CleanupJob は保持期間を超過したスナップショットの削除ジョブ。
// スナップショットジョブの最終段階で呼び出され、冪等な削除処理を保証する。
type CleanupJob struct {
	pruner        Pruner
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // スナップショットの保持日数（デフォルト: 7）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(pruner Pruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		pruner:        pruner,
		logger:        logger,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
	}
}

// Cutoff は現在時刻から算出した削除基準日（UTC）を返す。この日付より前が削除対象。
func (j *CleanupJob) Cutoff() string {
	return model.RetentionCutoff(j.now(), j.RetentionDays)
}

// Run は保持期間を超過したスナップショットを削除し、削除件数を返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := j.Cutoff()

	deletedCount, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("スナップショットの保持期間削除に失敗しました",
			slog.String("error", err.Error()),
			slog.String("cutoff_date", cutoff),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("保持期間削除の実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("スナップショットの保持期間削除が完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.String("cutoff_date", cutoff),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return deletedCount, nil
}
