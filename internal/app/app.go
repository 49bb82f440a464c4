// Package app はサブコマンドごとの依存関係の組み立てと起動処理を提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/sleeptrack/internal/config"
	"github.com/hitoshi/sleeptrack/internal/database"
	"github.com/hitoshi/sleeptrack/internal/follow"
	"github.com/hitoshi/sleeptrack/internal/handler"
	"github.com/hitoshi/sleeptrack/internal/logger"
	"github.com/hitoshi/sleeptrack/internal/metrics"
	"github.com/hitoshi/sleeptrack/internal/middleware"
	"github.com/hitoshi/sleeptrack/internal/queue"
	"github.com/hitoshi/sleeptrack/internal/repository"
	"github.com/hitoshi/sleeptrack/internal/sleep"
	"github.com/hitoshi/sleeptrack/internal/stats"
	"github.com/hitoshi/sleeptrack/internal/summary"
	"github.com/hitoshi/sleeptrack/internal/user"
	"github.com/hitoshi/sleeptrack/internal/worker/materialize"
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルでロガーを再構成する
	if cfg.LogLevel != slog.LevelInfo {
		logger.SetupDefault(w, cfg.LogLevel)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("queue_enabled", cfg.QueueEnabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		action, err := ParseMigrateAction(args[1:])
		if err != nil {
			return err
		}
		return runMigrate(cfg, action)
	case CommandBackfill:
		days, err := ParseBackfillDays(args[1:])
		if err != nil {
			return err
		}
		return runBackfill(ctx, cfg, days)
	default:
		return runServe(ctx, cfg)
	}
}

// services はAPIサーバーとワーカーが共有するドメイン層の依存関係。
type services struct {
	userRepo     *repository.PostgresUserRepo
	sessionRepo  *repository.PostgresSleepSessionRepo
	summaryRepo  *repository.PostgresDailySummaryRepo
	followRepo   *repository.PostgresFollowRepo
	materializer *summary.Materializer
}

// newServices はDB接続からリポジトリと再計算サービスを組み立てる。
func newServices(db *sql.DB, collector metrics.MetricsCollector, log *slog.Logger) *services {
	s := &services{
		userRepo:    repository.NewPostgresUserRepo(db),
		sessionRepo: repository.NewPostgresSleepSessionRepo(db),
		summaryRepo: repository.NewPostgresDailySummaryRepo(db),
		followRepo:  repository.NewPostgresFollowRepo(db),
	}
	s.materializer = summary.NewMaterializer(
		s.userRepo, s.sessionRepo, s.summaryRepo, collector,
		logger.Component(log, "materializer"), nil,
	)
	return s
}

// newEnqueuer はREDIS_URLが設定されていればRedisキューを、なければインライン実行のキューを返す。
// 返却されるclose関数は常に呼び出してよい。
func newEnqueuer(ctx context.Context, cfg *config.Config, materializer queue.Materializer, collector metrics.MetricsCollector, log *slog.Logger) (queue.Enqueuer, func(), error) {
	if !cfg.QueueEnabled() {
		log.Info("REDIS_URLが未設定のため日次サマリーを同期的に再計算します")
		return queue.NewInlineQueue(materializer, log, collector), func() {}, nil
	}

	client, err := queue.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, func() {}, err
	}
	return queue.NewRedisQueue(client, queue.DefaultKey, collector), func() { client.Close() }, nil
}

// buildRouter はAPIサーバーのルーターを組み立てる。
// 返り値のstopはレートリミッターのクリーンアップを止める。
func buildRouter(cfg *config.Config, db *sql.DB, svc *services, enqueuer queue.Enqueuer, reg *prometheus.Registry, collector metrics.MetricsCollector, log *slog.Logger) (router http.Handler, stop func()) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))

	selfReporter := summary.NewSelfReporter(svc.summaryRepo, collector, logger.Component(log, "self-report"), nil)
	followingReporter := summary.NewFollowingReporter(svc.followRepo, svc.summaryRepo, collector, logger.Component(log, "following-report"), nil)

	deps := &handler.RouterDeps{
		Logger:            log,
		Metrics:           collector,
		UserFinder:        svc.userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,

		HealthChecker:  db,
		MetricsHandler: metrics.SetupMetricsRoute(reg),

		UserService:   user.NewService(svc.userRepo, log, nil),
		FollowService: follow.NewService(svc.userRepo, svc.followRepo, log, nil),
		SleepService:  sleep.NewService(svc.sessionRepo, enqueuer, log, nil),

		SelfSummaryService:      selfReporter,
		FollowingSummaryService: followingReporter,
	}

	return handler.NewRouter(deps), limiter.Stop
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	log.Info("database connection established")

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスとキュー
	svc := newServices(db, collector, log)
	enqueuer, closeQueue, err := newEnqueuer(ctx, cfg, svc.materializer, collector, log)
	if err != nil {
		return fmt.Errorf("failed to set up queue: %w", err)
	}
	defer closeQueue()

	// 4. HTTPサーバーの起動
	router, stopRouter := buildRouter(cfg, db, svc, enqueuer, reg, collector, log)
	defer stopRouter()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// Redisキューが設定されていればジョブのコンシューマを起動し、
// 併せて前日と当日の日次サマリーを定期的に再計算するスケジューラを起動する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	log := logger.Component(slog.Default(), "materialize-worker")

	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	log.Info("database connection established (worker)")

	// 2. メトリクスとドメインサービス
	collector, metricsServer := newWorkerMetrics(cfg)
	svc := newServices(db, collector, log)

	scheduler := materialize.NewScheduler(
		svc.sessionRepo, svc.materializer, log, nil, cfg.MaterializeMaxConcurrent,
	)

	var redisClient *redis.Client
	if cfg.QueueEnabled() {
		redisClient, err = queue.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up queue: %w", err)
		}
		defer redisClient.Close()
	}

	log.Info("worker starting",
		slog.Duration("materialize_interval", cfg.MaterializeInterval),
		slog.Int("max_concurrent", cfg.MaterializeMaxConcurrent),
		slog.Bool("queue_enabled", redisClient != nil),
		slog.String("metrics_port", cfg.WorkerMetricsPort),
	)

	g, gctx := errgroup.WithContext(ctx)

	if metricsServer != nil {
		g.Go(func() error {
			return serveUntilDone(gctx, metricsServer, log)
		})
	}

	g.Go(func() error {
		scheduler.Start(gctx, cfg.MaterializeInterval)
		return nil
	})

	if redisClient != nil {
		consumer := materialize.NewConsumer(
			queue.NewRedisQueue(redisClient, queue.DefaultKey, collector),
			svc.materializer, log, cfg.QueuePopTimeout,
		)
		g.Go(func() error {
			consumer.Start(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("worker stopped gracefully")
	return nil
}

// newWorkerMetrics はワーカー用のメトリクス収集先を返す。
// WorkerMetricsPortが未設定の場合は記録しないNopCollectorを返し、サーバーはnilになる。
func newWorkerMetrics(cfg *config.Config) (metrics.MetricsCollector, *http.Server) {
	if cfg.WorkerMetricsPort == "" {
		return metrics.NopCollector{}, nil
	}
	reg := prometheus.NewRegistry()
	return metrics.NewCollector(reg), &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、その後シャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("metrics server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	return nil
}

// runBackfill は指定日の日次サマリーを一括で再計算する。
// マイグレーション適用後の初回投入や、ワーカー停止中に取りこぼした日付の補完に使う。
func runBackfill(ctx context.Context, cfg *config.Config, days []time.Time) error {
	log := logger.Component(slog.Default(), "backfill")

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	svc := newServices(db, metrics.NopCollector{}, log)
	scheduler := materialize.NewScheduler(
		svc.sessionRepo, svc.materializer, log, nil, cfg.MaterializeMaxConcurrent,
	)

	log.Info("日次サマリーの一括再計算を開始します",
		slog.String("start_date", days[0].Format(stats.DateLayout)),
		slog.String("end_date", days[len(days)-1].Format(stats.DateLayout)),
	)

	if err := scheduler.RunDays(ctx, days...); err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// action.Downが0なら未適用マイグレーションをすべて適用し、それ以外は指定件数を巻き戻す。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("down", action.Down),
	)

	if action.Down > 0 {
		if err := database.RollbackMigrations(cfg.DatabaseURL, action.Down); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	} else if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	sv, err := database.CurrentSchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration finished but version is unknown: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(sv.Version)),
		slog.Bool("applied", sv.Applied),
		slog.Bool("dirty", sv.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
