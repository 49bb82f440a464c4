// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/sleeptrack/internal/metrics"
	"github.com/hitoshi/sleeptrack/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ユーザー・フォロー
	UserService   UserServiceInterface
	FollowService FollowServiceInterface

	// 睡眠記録
	SleepService SleepServiceInterface

	// 睡眠サマリー
	SelfSummaryService      SelfSummaryServiceInterface
	FollowingSummaryService FollowingSummaryServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → CORS → SecurityHeaders → (認証ルートのみ) Auth → RateLimit
//
// ユーザー登録・参照（/api/v1/users, /api/v1/users/{id}）は認証不要とする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	userHandler := NewUserHandler(deps.UserService, deps.FollowService)
	sleepHandler := NewSleepHandler(deps.SleepService)
	summaryHandler := NewSummaryHandler(deps.SelfSummaryService, deps.FollowingSummaryService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", userHandler.CreateUser)
		r.Get("/users", userHandler.ListUsers)
		r.Get("/users/{id}", userHandler.GetUser)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Auth → RateLimit
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.UserFinder))
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware())
			}

			r.Post("/users/{id}/follow", userHandler.Follow)
			r.Delete("/users/{id}/unfollow", userHandler.Unfollow)

			r.Route("/sleep_records", func(r chi.Router) {
				r.Get("/", sleepHandler.ListSleepRecords)
				r.Post("/clock_in", sleepHandler.ClockIn)
				r.Patch("/{id}/clock_out", sleepHandler.ClockOut)
			})

			r.Get("/sleep_summaries", summaryHandler.SelfSummary)
			r.Get("/following_sleep_summaries", summaryHandler.FollowingSummary)
		})
	})

	return r
}
