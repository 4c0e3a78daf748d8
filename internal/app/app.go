package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/castradar/internal/config"
	"github.com/hitoshi/castradar/internal/database"
	"github.com/hitoshi/castradar/internal/handler"
	"github.com/hitoshi/castradar/internal/logger"
	"github.com/hitoshi/castradar/internal/metrics"
	"github.com/hitoshi/castradar/internal/middleware"
	"github.com/hitoshi/castradar/internal/sample"
	jobsnapshot "github.com/hitoshi/castradar/internal/worker/snapshot"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	l := logger.SetupDefault(w, cfg.SlogLevel())
	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	inv, err := ParseArgs(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if inv.Command == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(inv.Command)),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch inv.Command {
	case CommandWorker:
		return runWorker(ctx, cfg, l)
	case CommandSnapshot:
		return runSnapshot(ctx, cfg, l, inv.Force)
	case CommandMigrate:
		return runMigrate(cfg, l, inv.MigrateAction)
	default:
		return runServe(ctx, cfg, l)
	}
}

// runServe はAPIサーバーモードで起動する。
// 依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	c, err := buildComponents(cfg, l)
	if err != nil {
		return err
	}
	defer c.Close()

	limiter := middleware.NewRateLimiter(middleware.TriggerRateLimiterConfig(cfg.TriggerRatePerMin), l)
	defer limiter.Stop()

	deps := &handler.RouterDeps{
		Logger:         l,
		Job:            c.job,
		CronSecret:     cfg.CronSecret,
		TriggerLimiter: limiter,
		Snapshots:      c.store,
		Cache:          c.cache,
		MetricsHandler: metrics.Handler(c.registry),
	}
	if c.db != nil {
		deps.HealthChecker = c.db
	}
	if cfg.SampleDataEnabled {
		l.Warn("サンプルデータモードが有効です。/api/test-data で当日分が置き換えられます")
		deps.Sample = sample.NewGenerator(c.store, c.builder, l)
	}
	if !cfg.SecretConfigured() {
		l.Warn("CRON_SECRET が未設定のため、ジョブトリガーは認証なしで実行されます")
	}

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     handler.NewRouter(deps),
		ReadTimeout: 15 * time.Second,
		// トリガーはジョブ完了までレスポンスを返さない
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// スナップショットジョブを起動直後とSNAPSHOT_INTERVALごとに実行する。
// 当日分が作成済みであれば実行はスキップされる。
func runWorker(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	c, err := buildComponents(cfg, l)
	if err != nil {
		return err
	}
	defer c.Close()

	l.Info("worker starting",
		slog.Duration("interval", cfg.SnapshotInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
		slog.Int("max_channels", cfg.MaxChannels),
	)

	scheduler := jobsnapshot.NewScheduler(c.job, l)
	scheduler.Start(ctx, cfg.SnapshotInterval)

	l.Info("worker stopped gracefully")
	return nil
}

// runSnapshot はスナップショットジョブを1回だけ実行する。
// 外部のスケジューラからプロセス単位で起動する場合に使用する。
func runSnapshot(ctx context.Context, cfg *config.Config, l *slog.Logger, force bool) error {
	c, err := buildComponents(cfg, l)
	if err != nil {
		return err
	}
	defer c.Close()

	out := c.job.Run(ctx, jobsnapshot.RunOptions{Force: force})
	if out.Status == jobsnapshot.StatusFailed {
		return fmt.Errorf("snapshot job failed at %s: %w", out.FailedAt, out.Err())
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, l *slog.Logger, action string) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("migrate requires STORE_DRIVER=%s", config.StoreDriverPostgres)
	}

	l.Info("running database migrations",
		slog.String("action", action),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		l.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	l.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	healthURL := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
