package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/castradar/internal/middleware"
	"github.com/hitoshi/castradar/internal/model"
)

// 履歴APIで返す最大件数（保持期間と同じ7日分）。
const maxHistoryLimit = 7

// SnapshotReader はスナップショットの読み取り操作。
type SnapshotReader interface {
	GetLatest(ctx context.Context, n int) ([]*model.Snapshot, error)
	GetByDate(ctx context.Context, date string) (*model.Snapshot, error)
}

// ResponseCache はエンコード済みレスポンスのキャッシュ。
// 読み取り中にPurgeされた場合は古いレスポンスを保存しない。
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	Version() uint64
	SetIfVersion(key string, value []byte, version uint64) bool
}

// snapshotResponse はスナップショットのレスポンス。
// フロントエンドが参照するテーブルの列名に合わせる。
type snapshotResponse struct {
	ID            string                 `json:"id"`
	Date          string                 `json:"date"`
	TopChannels   []model.ChannelRanking `json:"top_channels"`
	MostLikedCast *model.Cast            `json:"most_liked_cast"`
	CreatedAt     time.Time              `json:"created_at"`
}

// todayResponse は当日分のレスポンス。未作成の場合snapshotはnull。
type todayResponse struct {
	Date     string            `json:"date"`
	Snapshot *snapshotResponse `json:"snapshot"`
}

// historyResponse は直近のスナップショット一覧のレスポンス。
type historyResponse struct {
	Snapshots []snapshotResponse `json:"snapshots"`
}

// SnapshotHandler はスナップショット読み取りAPIのHTTPハンドラー。
type SnapshotHandler struct {
	reader SnapshotReader
	cache  ResponseCache
	logger *slog.Logger
	now    func() time.Time
}

// NewSnapshotHandler はSnapshotHandlerを生成する。
func NewSnapshotHandler(reader SnapshotReader, cache ResponseCache, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		reader: reader,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Today は当日（UTC）のスナップショットを返す。
// GET /api/snapshots/today
func (h *SnapshotHandler) Today(w http.ResponseWriter, r *http.Request) {
	today := model.DateOf(h.now())

	h.serveCached(w, "today:"+today, func() (any, *model.APIError, int, error) {
		s, err := h.reader.GetByDate(r.Context(), today)
		if err != nil {
			return nil, nil, 0, err
		}
		return todayResponse{Date: today, Snapshot: toSnapshotResponse(s)}, nil, http.StatusOK, nil
	})
}

// List は新しい日付順にスナップショットを返す。
// GET /api/snapshots?limit=7（1〜7、省略時7）
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := maxHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidLimitError(raw))
			return
		}
		limit = n
	}

	h.serveCached(w, "latest:"+strconv.Itoa(limit), func() (any, *model.APIError, int, error) {
		snaps, err := h.reader.GetLatest(r.Context(), limit)
		if err != nil {
			return nil, nil, 0, err
		}
		resp := historyResponse{Snapshots: make([]snapshotResponse, 0, len(snaps))}
		for _, s := range snaps {
			resp.Snapshots = append(resp.Snapshots, *toSnapshotResponse(s))
		}
		return resp, nil, http.StatusOK, nil
	})
}

// GetByDate は指定日付のスナップショットを返す。
// GET /api/snapshots/{date}
func (h *SnapshotHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := model.ParseDate(date); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(date))
		return
	}

	h.serveCached(w, "date:"+date, func() (any, *model.APIError, int, error) {
		s, err := h.reader.GetByDate(r.Context(), date)
		if err != nil {
			return nil, nil, 0, err
		}
		if s == nil {
			return nil, model.NewSnapshotNotFoundError(date), http.StatusNotFound, nil
		}
		return toSnapshotResponse(s), nil, http.StatusOK, nil
	})
}

// serveCached はキャッシュにあればそれを返し、なければloadの結果をキャッシュして返す。
// エラーレスポンスはキャッシュしない。
func (h *SnapshotHandler) serveCached(w http.ResponseWriter, key string, load func() (any, *model.APIError, int, error)) {
	version := h.cache.Version()
	if body, ok := h.cache.Get(key); ok {
		writeRawJSON(w, http.StatusOK, body)
		return
	}

	v, apiErr, statusCode, err := load()
	if err != nil {
		h.logger.Error("スナップショットの読み取りに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if apiErr != nil {
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	body, err := marshalResponse(v)
	if err != nil {
		h.logger.Error("レスポンスのエンコードに失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.cache.SetIfVersion(key, body, version)
	writeRawJSON(w, statusCode, body)
}

func toSnapshotResponse(s *model.Snapshot) *snapshotResponse {
	if s == nil {
		return nil
	}
	top := s.TopChannels
	if top == nil {
		top = []model.ChannelRanking{}
	}
	return &snapshotResponse{
		ID:            s.ID,
		Date:          s.Date,
		TopChannels:   top,
		MostLikedCast: s.GlobalMostLiked,
		CreatedAt:     s.CreatedAt,
	}
}
