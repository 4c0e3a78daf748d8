package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/castradar/internal/cache"
	"github.com/hitoshi/castradar/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ジョブトリガー
	Job            JobRunner
	CronSecret     string
	TriggerLimiter *middleware.RateLimiter

	// 読み取りAPI
	Snapshots SnapshotReader
	Cache     cache.SnapshotCache

	// サンプルデータ（nilの場合はルーティングしない）
	Sample SampleSeeder

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders
//
// ジョブトリガーには追加で SharedSecret → RateLimit を適用する。
// 認証に失敗したリクエストはレート制限のトークンを消費しない。
// GET以外のメソッドは統一フォーマットの405を返す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.MethodNotAllowed(middleware.MethodNotAllowedHandler)

	responseCache := deps.Cache
	if responseCache == nil {
		responseCache = cache.New(0, 0, nil)
	}

	triggerHandler := NewTriggerHandler(deps.Job, responseCache, deps.CronSecret, deps.Logger)
	snapshotHandler := NewSnapshotHandler(deps.Snapshots, responseCache, deps.Logger)
	healthHandler := NewHealthHandler(deps.HealthChecker, deps.Logger)

	// --- ジョブトリガー ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewNoStoreMiddleware())
		r.Use(middleware.NewSharedSecretMiddleware(deps.CronSecret, deps.Logger))
		if deps.TriggerLimiter != nil {
			r.Use(deps.TriggerLimiter.Middleware())
		}

		r.Get("/api/cron", triggerHandler.Trigger)
		r.Get("/api/refresh", triggerHandler.Trigger)

		if deps.Sample != nil {
			sampleHandler := NewSampleHandler(deps.Sample, responseCache, deps.Logger)
			r.Get("/api/test-data", sampleHandler.Seed)
		}
	})

	// --- 読み取りAPI ---
	r.Route("/api/snapshots", func(r chi.Router) {
		r.Get("/", snapshotHandler.List)
		r.Get("/today", snapshotHandler.Today)
		r.Get("/{date}", snapshotHandler.GetByDate)
	})

	// --- 運用 ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}
