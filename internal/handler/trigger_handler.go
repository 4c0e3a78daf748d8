package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/castradar/internal/middleware"
	"github.com/hitoshi/castradar/internal/model"
	jobsnapshot "github.com/hitoshi/castradar/internal/worker/snapshot"
)

// JobRunner はスナップショット集計ジョブを実行する。
type JobRunner interface {
	Run(ctx context.Context, opts jobsnapshot.RunOptions) jobsnapshot.Outcome
}

// CachePurger は読み取りキャッシュを破棄する。
type CachePurger interface {
	Purge()
}

// triggerResponse はトリガーAPIのレスポンス。失敗時のみエラーコードを付与する。
type triggerResponse struct {
	jobsnapshot.Outcome
	Code string `json:"code,omitempty"`
}

// TriggerHandler はジョブトリガーのHTTPハンドラー。
type TriggerHandler struct {
	runner JobRunner
	cache  CachePurger
	secret string
	logger *slog.Logger
}

// NewTriggerHandler はTriggerHandlerを生成する。
// secretは強制再生成の可否判定にのみ使用する（認証自体はミドルウェアで行う）。
func NewTriggerHandler(runner JobRunner, cache CachePurger, secret string, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{
		runner: runner,
		cache:  cache,
		secret: secret,
		logger: logger,
	}
}

// Trigger はスナップショット集計ジョブを1回実行し、結果を返す。
// GET /api/cron, GET /api/refresh
//
// ?force=true の場合は当日分を削除してから再生成する。強制再生成はシークレット設定時のみ許可する。
// 成功・スキップは200、失敗は500を返す。レスポンスボディは実行結果そのもの。
func (h *TriggerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if force && h.secret == "" {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForceNotAllowedError())
		return
	}

	// クライアント切断で保存処理が中断されないようにキャンセルを切り離す
	ctx := context.WithoutCancel(r.Context())
	out := h.runner.Run(ctx, jobsnapshot.RunOptions{Force: force})

	resp := triggerResponse{Outcome: out}
	statusCode := http.StatusOK

	switch out.Status {
	case jobsnapshot.StatusFailed:
		statusCode = http.StatusInternalServerError
		resp.Code = model.ErrCodeSnapshotJobFailed
		if errors.Is(out.Err(), model.ErrSnapshotConflict) {
			resp.Code = model.ErrCodeSnapshotConflict
		}
	case jobsnapshot.StatusSuccess:
		if h.cache != nil {
			h.cache.Purge()
		}
	}

	h.logger.Info("job trigger handled",
		slog.String("status", string(out.Status)),
		slog.String("state", string(out.State)),
		slog.Bool("force", force),
	)

	writeJSON(w, statusCode, resp)
}
