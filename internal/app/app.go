package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/unisearch/internal/auth"
	"github.com/hitoshi/unisearch/internal/config"
	"github.com/hitoshi/unisearch/internal/database"
	"github.com/hitoshi/unisearch/internal/handler"
	"github.com/hitoshi/unisearch/internal/integration"
	"github.com/hitoshi/unisearch/internal/logger"
	"github.com/hitoshi/unisearch/internal/metrics"
	"github.com/hitoshi/unisearch/internal/middleware"
	"github.com/hitoshi/unisearch/internal/model"
	"github.com/hitoshi/unisearch/internal/provider"
	"github.com/hitoshi/unisearch/internal/repository"
	"github.com/hitoshi/unisearch/internal/search"
	"github.com/hitoshi/unisearch/internal/security"
	"github.com/hitoshi/unisearch/internal/user"
	"github.com/hitoshi/unisearch/internal/worker/cleanup"
)

// providerTimeout は外部プロバイダー1回の呼び出しに掛けるHTTPタイムアウト。
// 横断検索全体のタイムアウトは設けない。
const providerTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	if err := config.LoadDotEnv(os.Getenv("DOTENV_PATH")); err != nil {
		return nil, fmt.Errorf("failed to load dotenv: %w", err)
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 3. 環境変数から設定を読み込む
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
	inv, err := ParseCommand(args)
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

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(inv.Command)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch inv.Command {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, inv.Migrate)
	case CommandProviders:
		return runProviders(w, cfg)
	default:
		return runServe(cfg)
	}
}

// providerStatus は1プロバイダー分のクライアント設定の検証結果。
type providerStatus struct {
	provider model.Provider
	err      error
}

// providerStatuses はマージ順に全プロバイダーの設定を検証する。
func providerStatuses(cfg *config.Config) []providerStatus {
	statuses := make([]providerStatus, 0, len(model.AllProviders))
	for _, p := range model.AllProviders {
		pc, _ := cfg.Provider(p)
		statuses = append(statuses, providerStatus{provider: p, err: pc.Validate(p)})
	}
	return statuses
}

// components はAPIサーバーの依存関係をワイヤリングした結果。
type components struct {
	router      http.Handler
	rateLimiter *middleware.RateLimiter
}

// wire はDB接続と設定から全依存関係を組み立てる。
// DB以外の外部接続は行わないため、起動時にプロバイダー設定が欠けていても失敗しない。
func wire(cfg *config.Config, db *sql.DB, reg prometheus.Registerer, gatherer prometheus.Gatherer) *components {
	log := slog.Default()

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	credRepo := repository.NewPostgresCredentialRepo(db)

	// 2. 横断的関心事
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewResultSanitizer()
	httpClient := &http.Client{Timeout: providerTimeout}

	// 3. プロバイダー連携（OAuth）
	slackExchanger := integration.NewSlackExchanger(cfg.Slack, httpClient)
	notionExchanger := integration.NewNotionExchanger(cfg.Notion, cfg.NotionAPIVersion, httpClient)
	googleExchanger := integration.NewGoogleExchanger(cfg.GoogleDrive, httpClient)
	integrationService := integration.NewService(credRepo, collector, log,
		slackExchanger, notionExchanger, googleExchanger,
	)

	// 4. 検索アダプターと集約（アダプターは認可情報の確認にも使う）
	slackSearcher := provider.NewSlackSearcher(httpClient, sanitizer, log)
	notionSearcher := provider.NewNotionSearcher(httpClient, cfg.NotionAPIVersion, sanitizer, log)
	driveSearcher := provider.NewGoogleDriveSearcher(httpClient, googleExchanger.OAuthConfig(), sanitizer, log)
	aggregator := search.NewAggregator(credRepo, collector, log, slackSearcher, notionSearcher, driveSearcher)

	// 5. ドメインサービス
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	userService := user.NewService(userRepo, credRepo, log, slackSearcher, notionSearcher, driveSearcher)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.LoginRateLimiterConfig(cfg.RateLimitLogin))

	deps := &handler.RouterDeps{
		Logger:            log,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		HealthChecker:   db,
		MetricsGatherer: gatherer,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		IntegrationService: integrationService,
		SearchService:      handler.NewSearchServiceAdapter(aggregator),
		AccountService:     handler.NewAccountServiceAdapter(userService),
	}

	return &components{
		router:      handler.NewRouter(deps),
		rateLimiter: rateLimiter,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 未設定のプロバイダーは連携開始時に500を返すだけで、起動は継続する
	for _, st := range providerStatuses(cfg) {
		if st.err != nil {
			slog.Warn("provider is not configured",
				slog.String("provider", string(st.provider)),
				slog.String("error", st.err.Error()),
			)
		}
	}

	// 2. 依存関係のワイヤリング
	c := wire(cfg, db, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	defer c.rateLimiter.Stop()

	// 3. HTTPサーバーの起動
	// 書き込みタイムアウトはプロバイダー呼び出しのタイムアウトより長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: providerTimeout + 15*time.Second,
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
// 期限切れセッションのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default())

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
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// connectDatabase は設定のプール上限でDBに接続し、疎通を確認する。
func connectDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runMigrate はデータベースマイグレーションを操作する。
// upは未適用分をすべて適用し、downは直近の1件を戻す。versionは現在のバージョンを出力する。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	log := slog.With(
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		log.Info("rolling back last database migration")
		if err := database.RollbackMigrations(cfg.DatabaseURL, 1); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
	default:
		log.Info("running database migrations")
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info("database migration version",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runProviders はプロバイダーごとのOAuthクライアント設定の有無を1行ずつ出力する。
// 出力はマージ順（slack, notion, google_drive）。
func runProviders(w io.Writer, cfg *config.Config) error {
	for _, st := range providerStatuses(cfg) {
		status := "configured"
		if st.err != nil {
			status = "missing: " + st.err.Error()
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", st.provider, status); err != nil {
			return err
		}
	}
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
