package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/storyhub/storyhub/internal/metrics"
	"github.com/storyhub/storyhub/internal/middleware"
	"github.com/storyhub/storyhub/internal/notify"
)

// HealthChecker はDB死活確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	Hub         *notify.Hub

	// ストーリー
	StoryService      StoryServiceInterface
	URLResolver       URLResolver
	MaxAttachmentSize int64

	// プロフィール
	ProfileService ProfileServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (保護ルートのみ) Session → RateLimit(General)
//
// 認証ルート（/auth/*）と公開読み取りルート（フィード・詳細）は
// セッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.Hub, deps.AuthConfig)
	storyHandler := NewStoryHandler(deps.StoryService, deps.URLResolver, deps.MaxAttachmentSize)
	profileHandler := NewProfileHandler(deps.ProfileService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Get("/events", authHandler.Events)
	})

	// フィードと詳細は未ログインでも閲覧できる
	r.Get("/api/stories", storyHandler.ListStories)
	r.Get("/api/stories/{id}", storyHandler.GetStory)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// POST /api/stories - ストーリー投稿（投稿専用レート制限を追加）
		r.With(deps.RateLimiter.SubmissionMiddleware()).Post("/api/stories", storyHandler.SubmitStory)
		r.Delete("/api/stories/{id}", storyHandler.DeleteStory)

		r.Get("/api/users/me/stories", storyHandler.ListMyStories)

		r.Route("/api/profiles/me", func(r chi.Router) {
			r.Get("/", profileHandler.GetMe)
			r.Patch("/", profileHandler.UpdateMe)
		})
	})

	return r
}
