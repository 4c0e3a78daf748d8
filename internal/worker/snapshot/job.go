// Package snapshot は日次スナップショット集計ジョブを提供する。
// 当日分が未作成の場合のみチャンネルごとのキャストを取得・集計して保存し、
// 最後に保持期間を超過したスナップショットを削除する。
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/castradar/internal/metrics"
	"github.com/hitoshi/castradar/internal/model"
	"github.com/hitoshi/castradar/internal/ranking"
)

// State はジョブの状態。
type State string

const (
	StateStart         State = "START"
	StateCheckExisting State = "CHECK_EXISTING"
	StateSkip          State = "SKIP"
	StateFetch         State = "FETCH"
	StateRank          State = "RANK"
	StatePersist       State = "PERSIST"
	StatePrune         State = "PRUNE"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)

// Status はジョブ実行結果の区分。
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

const (
	// DefaultFetchTimeout はチャンネル取得1回あたりの既定タイムアウト。
	DefaultFetchTimeout = 5 * time.Second
	// DefaultMaxConcurrent はチャンネル取得の既定の最大並列数。
	DefaultMaxConcurrent = 4
	// DefaultCastLimit はチャンネルごとに取得する既定のキャスト数。
	DefaultCastLimit = 100

	msgAlreadyExists = "snapshot already exists"
	msgCreated       = "snapshot created"
)

// ChannelLister は集計対象チャンネルの一覧を返す。
type ChannelLister interface {
	ListChannels(ctx context.Context) []string
}

// CastFetcher はチャンネルのキャストを取得する。失敗時は空のスライスを返す。
type CastFetcher interface {
	FetchChannelCasts(ctx context.Context, channelID string, limit int) []model.Cast
}

// Builder はランキング結果からスナップショットを組み立てる。
type Builder interface {
	Build(date string, rankings []model.ChannelRanking, globalBest *model.Cast) *model.Snapshot
}

// Store はジョブが使用するスナップショットの永続化操作。
type Store interface {
	Exists(ctx context.Context, date string) (bool, error)
	Insert(ctx context.Context, snapshot *model.Snapshot) error
	DeleteByDate(ctx context.Context, date string) (int64, error)
}

// Pruner は保持期間を超過したスナップショットを削除する。
type Pruner interface {
	Run(ctx context.Context) (int64, error)
}

// MetricsRecorder はジョブが記録するメトリクス。
type MetricsRecorder interface {
	RecordJobRun(status string, duration time.Duration)
	RecordSnapshotChannels(count int)
	RecordPruned(count int64)
	RecordPruneFailure()
}

// Deps はJobの依存コンポーネント。
type Deps struct {
	Channels ChannelLister
	Fetcher  CastFetcher
	Builder  Builder
	Store    Store
	Pruner   Pruner
	Metrics  MetricsRecorder
	Logger   *slog.Logger
}

// Config はJobの動作設定。
type Config struct {
	CastLimit     int
	FetchTimeout  time.Duration
	MaxConcurrent int
}

// RunOptions は1回の実行に対するオプション。
type RunOptions struct {
	// Force が有効な場合、当日分のスナップショットを削除してから再生成する。
	Force bool
}

// Outcome はジョブ実行結果。トリガーAPIのレスポンスボディとしてそのまま返す。
type Outcome struct {
	Status         Status `json:"status"`
	State          State  `json:"state"`
	FailedAt       State  `json:"failed_at,omitempty"`
	Date           string `json:"date"`
	Message        string `json:"message"`
	Forced         bool   `json:"forced,omitempty"`
	ChannelCount   int    `json:"channel_count"`
	GlobalMaxLikes int    `json:"global_max_likes"`
	PrunedCount    int64  `json:"pruned_count"`
	PruneWarning   string `json:"prune_warning,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMS     int64  `json:"duration_ms"`

	err error
}

// Err は失敗時の原因エラーを返す。成功・スキップ時はnil。
func (o Outcome) Err() error {
	return o.err
}

// Job は日次スナップショット集計ジョブ。
// START → CHECK_EXISTING → {SKIP | FETCH} → RANK → PERSIST → PRUNE → DONE の順に遷移し、
// 途中の失敗はFAILEDで終了する。保存に失敗した場合は何も永続化されない。
type Job struct {
	channels ChannelLister
	fetcher  CastFetcher
	builder  Builder
	store    Store
	pruner   Pruner
	metrics  MetricsRecorder
	logger   *slog.Logger
	config   Config
	now      func() time.Time
}

// NewJob はJobを生成する。未設定の設定値には既定値を使用する。
func NewJob(deps Deps, cfg Config) *Job {
	if cfg.CastLimit <= 0 {
		cfg.CastLimit = DefaultCastLimit
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.NopCollector{}
	}

	return &Job{
		channels: deps.Channels,
		fetcher:  deps.Fetcher,
		builder:  deps.Builder,
		store:    deps.Store,
		pruner:   deps.Pruner,
		metrics:  m,
		logger:   deps.Logger,
		config:   cfg,
		now:      time.Now,
	}
}

// Run はジョブを1回実行する。結果は常にOutcomeで返し、パニックしない。
func (j *Job) Run(ctx context.Context, opts RunOptions) Outcome {
	start := time.Now()
	today := model.DateOf(j.now())
	logger := j.logger.With(
		slog.String("run_id", uuid.NewString()),
		slog.String("date", today),
	)

	out := Outcome{
		State:  StateStart,
		Date:   today,
		Forced: opts.Force,
	}

	logger.Info("スナップショットジョブを開始します", slog.Bool("force", opts.Force))

	if opts.Force {
		deleted, err := j.store.DeleteByDate(ctx, today)
		if err != nil {
			return j.finish(logger, start, j.fail(out, StateStart, fmt.Errorf("当日分の削除に失敗: %w", err)))
		}
		logger.Info("強制再生成のため当日分のスナップショットを削除しました",
			slog.Int64("deleted_count", deleted),
		)
	}

	// CHECK_EXISTING
	out.State = StateCheckExisting
	exists, err := j.store.Exists(ctx, today)
	if err != nil {
		return j.finish(logger, start, j.fail(out, StateCheckExisting, fmt.Errorf("既存スナップショットの確認に失敗: %w", err)))
	}
	if exists {
		out.Status = StatusSkipped
		out.State = StateSkip
		out.Message = msgAlreadyExists
		return j.finish(logger, start, out)
	}

	// FETCH
	out.State = StateFetch
	channels := j.channels.ListChannels(ctx)
	results := j.fetchAll(ctx, logger, channels)

	// RANK: キャストのないチャンネルは除外し、チャンネル一覧の順に畳み込む
	out.State = StateRank
	tracker := ranking.NewGlobalTracker()
	rankings := make([]model.ChannelRanking, 0, len(channels))
	for i, ch := range channels {
		if len(results[i]) == 0 {
			logger.Debug("キャストのないチャンネルを除外しました", slog.String("channel", ch))
			continue
		}
		r := ranking.RankChannel(ch, results[i])
		rankings = append(rankings, r)
		tracker.Observe(r)
	}

	// PERSIST
	out.State = StatePersist
	snap := j.builder.Build(today, rankings, tracker.Best())
	if err := j.store.Insert(ctx, snap); err != nil {
		return j.finish(logger, start, j.fail(out, StatePersist, fmt.Errorf("スナップショットの保存に失敗: %w", err)))
	}
	out.ChannelCount = len(snap.TopChannels)
	if tracker.MaxLikes() > 0 {
		out.GlobalMaxLikes = tracker.MaxLikes()
	}
	j.metrics.RecordSnapshotChannels(out.ChannelCount)

	// PRUNE: 失敗しても保存済みのスナップショットは有効なため警告にとどめる
	out.State = StatePrune
	pruned, err := j.pruner.Run(ctx)
	if err != nil {
		out.PruneWarning = err.Error()
		j.metrics.RecordPruneFailure()
		logger.Warn("保持期間削除に失敗しましたが、スナップショットは保存済みです",
			slog.String("error", err.Error()),
		)
	} else {
		out.PrunedCount = pruned
		j.metrics.RecordPruned(pruned)
	}

	out.Status = StatusSuccess
	out.State = StateDone
	out.Message = msgCreated
	return j.finish(logger, start, out)
}

// fetchAll は全チャンネルのキャストを最大MaxConcurrent並列で取得する。
// 結果はチャンネル一覧と同じ添字に格納し、到着順には依存しない。
func (j *Job) fetchAll(ctx context.Context, logger *slog.Logger, channels []string) [][]model.Cast {
	results := make([][]model.Cast, len(channels))

	sem := make(chan struct{}, j.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i, ch := range channels {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, ch string) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = j.fetchChannel(ctx, logger, ch)
		}(i, ch)
	}

	wg.Wait()
	return results
}

// fetchChannel は1チャンネル分を取得する。
// タイムアウトとパニックは当該チャンネルを空として扱い、他のチャンネルには影響しない。
func (j *Job) fetchChannel(ctx context.Context, logger *slog.Logger, channel string) (casts []model.Cast) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("チャンネル取得中にパニックが発生しました",
				slog.String("channel", channel),
				slog.String("panic", fmt.Sprint(r)),
			)
			casts = nil
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, j.config.FetchTimeout)
	defer cancel()

	return j.fetcher.FetchChannelCasts(fetchCtx, channel, j.config.CastLimit)
}

func (j *Job) fail(out Outcome, at State, err error) Outcome {
	out.Status = StatusFailed
	out.State = StateFailed
	out.FailedAt = at
	out.Error = err.Error()
	out.err = err

	switch {
	case errors.Is(err, model.ErrSnapshotConflict):
		out.Message = "snapshot for this date was created concurrently"
	default:
		out.Message = fmt.Sprintf("snapshot job failed at %s", at)
	}
	return out
}

func (j *Job) finish(logger *slog.Logger, start time.Time, out Outcome) Outcome {
	duration := time.Since(start)
	out.DurationMS = duration.Milliseconds()
	j.metrics.RecordJobRun(string(out.Status), duration)

	attrs := []any{
		slog.String("status", string(out.Status)),
		slog.String("state", string(out.State)),
		slog.Int("channel_count", out.ChannelCount),
		slog.Int("global_max_likes", out.GlobalMaxLikes),
		slog.Int64("pruned_count", out.PrunedCount),
		slog.Int64("duration_ms", out.DurationMS),
	}

	switch out.Status {
	case StatusFailed:
		attrs = append(attrs,
			slog.String("failed_at", string(out.FailedAt)),
			slog.String("error", out.Error),
		)
		logger.Error("スナップショットジョブが失敗しました", attrs...)
	case StatusSkipped:
		logger.Info("当日分のスナップショットが既に存在するためスキップしました", attrs...)
	default:
		logger.Info("スナップショットジョブが完了しました", attrs...)
	}
	return out
}
