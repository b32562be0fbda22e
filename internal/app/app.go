// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/storyhub/storyhub/internal/auth"
	"github.com/storyhub/storyhub/internal/config"
	"github.com/storyhub/storyhub/internal/database"
	"github.com/storyhub/storyhub/internal/handler"
	"github.com/storyhub/storyhub/internal/logger"
	"github.com/storyhub/storyhub/internal/metrics"
	"github.com/storyhub/storyhub/internal/middleware"
	"github.com/storyhub/storyhub/internal/notify"
	"github.com/storyhub/storyhub/internal/profile"
	"github.com/storyhub/storyhub/internal/repository"
	"github.com/storyhub/storyhub/internal/security"
	"github.com/storyhub/storyhub/internal/storage"
	"github.com/storyhub/storyhub/internal/story"
	"github.com/storyhub/storyhub/internal/worker/audiogen"
	"github.com/storyhub/storyhub/internal/worker/sweep"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB・オブジェクトストレージへ接続し、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. オブジェクトストレージへの接続
	store, err := storage.NewS3Store(storage.S3Config{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		PublicURL: cfg.StoragePublicURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	ensureCtx, ensureCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer ensureCancel()
	if err := store.EnsureBucket(ensureCtx); err != nil {
		return fmt.Errorf("failed to ensure storage bucket: %w", err)
	}

	slog.Info("object storage connection established",
		slog.String("bucket", cfg.StorageBucket),
	)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	storyRepo := repository.NewPostgresStoryRepo(db)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. 認証イベントハブの起動
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := notify.NewHub(slog.Default())
	go hub.Run(hubCtx)

	// 7. ドメインサービスの初期化
	tokenIssuer := auth.NewTokenIssuer(cfg.SessionSecret)
	authService := auth.NewService(
		userRepo, sessionRepo, hub, tokenIssuer,
		time.Duration(cfg.SessionMaxAge)*time.Second,
		slog.Default(),
	)

	coverFetcher := story.NewCoverFetcher(
		ssrfGuard, store, cfg.CoverFetchTimeout, cfg.CoverFetchMaxSize,
		slog.Default(),
	)
	storyService := story.NewService(
		storyRepo, store, sanitizer, coverFetcher,
		cfg.MaxAttachmentSize, collector, slog.Default(),
	)

	profileService := profile.NewService(profileRepo, sanitizer, slog.Default())

	// 8. レートリミッターの構築（設定はreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = perMinute(cfg.RateLimitGeneral)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSubmission > 0 {
		rateLimiterCfg.SubmissionRate = perMinute(cfg.RateLimitSubmission)
		rateLimiterCfg.SubmissionBurst = cfg.RateLimitSubmission
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 9. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:     db,
		SessionResolver:   authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		Gatherer:          registry,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure:    cfg.CookieSecure,
			CookieDomain:    cfg.CookieDomain,
			SessionMaxAge:   time.Duration(cfg.SessionMaxAge) * time.Second,
			WSAllowedOrigin: cfg.CORSAllowedOrigin,
		},
		Hub: hub,

		StoryService:      storyService,
		URLResolver:       store,
		MaxAttachmentSize: cfg.MaxAttachmentSize,

		ProfileService: profileService,
	})

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 音声生成スケジューラと孤児オブジェクト掃除ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. オブジェクトストレージへの接続
	store, err := storage.NewS3Store(storage.S3Config{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		PublicURL: cfg.StoragePublicURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	// 3. リポジトリとメトリクスの初期化
	storyRepo := repository.NewPostgresStoryRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 掃除ジョブの初期化
	sweepJob := sweep.NewSweepJob(storyRepo, store, collector, slog.Default())
	sweepJob.GracePeriod = cfg.SweepGracePeriod

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("audio_poll_interval", cfg.AudioPollInterval),
		slog.Int("audio_max_concurrent", cfg.AudioMaxConcurrent),
		slog.Duration("sweep_grace_period", cfg.SweepGracePeriod),
	)

	// 掃除ジョブを日次でバックグラウンド実行
	go sweepJob.Start(ctx, 24*time.Hour)

	// TTSエンドポイント未設定の場合は音声生成をスキップし、掃除ジョブのみ動かす
	if cfg.TTSEndpoint == "" {
		slog.Warn("TTS_ENDPOINTが未設定のため音声生成スケジューラを起動しません")
		<-ctx.Done()
	} else {
		tts := audiogen.NewTTSClient(cfg.TTSEndpoint, cfg.TTSTimeout)
		scheduler := audiogen.NewScheduler(
			storyRepo, store, tts, collector, slog.Default(),
			cfg.AudioMaxConcurrent, cfg.AudioMaxPerCycle,
		)

		// 音声生成スケジューラをメインgoroutineで実行（ブロッキング）
		scheduler.Start(ctx, cfg.AudioPollInterval)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// perMinute はreq/min値をrate.Limit（req/sec）に変換する。
func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
