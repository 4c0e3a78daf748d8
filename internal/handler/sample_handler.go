package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/castradar/internal/middleware"
	"github.com/hitoshi/castradar/internal/sample"
)

// SampleSeeder は当日分をサンプルデータで置き換える。
type SampleSeeder interface {
	Seed(ctx context.Context) (*sample.Result, error)
}

// SampleHandler はサンプルデータ投入のHTTPハンドラー。
// SAMPLE_DATA_ENABLED が有効な場合のみルーティングされる。
type SampleHandler struct {
	seeder SampleSeeder
	cache  CachePurger
	logger *slog.Logger
}

// NewSampleHandler はSampleHandlerを生成する。
func NewSampleHandler(seeder SampleSeeder, cache CachePurger, logger *slog.Logger) *SampleHandler {
	return &SampleHandler{seeder: seeder, cache: cache, logger: logger}
}

// Seed は当日分のスナップショットをサンプルデータで置き換える。
// GET /api/test-data
func (h *SampleHandler) Seed(w http.ResponseWriter, r *http.Request) {
	res, err := h.seeder.Seed(r.Context())
	if err != nil {
		h.logger.Error("サンプルデータの投入に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if h.cache != nil {
		h.cache.Purge()
	}
	writeJSON(w, http.StatusOK, res)
}
