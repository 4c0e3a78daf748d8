package snapshot

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval はworkerモードでのジョブ実行間隔の既定値。
// 当日分が作成済みであれば実行はスキップされるため、短い間隔でも重複作成は起きない。
const DefaultInterval = time.Hour

// Runner はジョブ実行のインターフェース。
type Runner interface {
	Run(ctx context.Context, opts RunOptions) Outcome
}

// Scheduler はスナップショットジョブを一定間隔で実行する。
// 外部のcronを使わずにworkerプロセス単体で日次スナップショットを作成する場合に使用する。
type Scheduler struct {
	job    Runner
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(job Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		job:    job,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スナップショットスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スナップショットスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はジョブを1回実行する。キャンセル済みのコンテキストでは実行しない。
func (s *Scheduler) RunOnce(ctx context.Context) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Status: StatusSkipped, State: StateStart, Message: "context canceled"}
	}
	return s.job.Run(ctx, RunOptions{})
}
