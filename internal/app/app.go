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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/payrollpro/internal/browser"
	"github.com/hitoshi/payrollpro/internal/config"
	"github.com/hitoshi/payrollpro/internal/database"
	"github.com/hitoshi/payrollpro/internal/handler"
	"github.com/hitoshi/payrollpro/internal/logger"
	"github.com/hitoshi/payrollpro/internal/metrics"
	"github.com/hitoshi/payrollpro/internal/middleware"
	"github.com/hitoshi/payrollpro/internal/payroll"
	"github.com/hitoshi/payrollpro/internal/repository"
	"github.com/hitoshi/payrollpro/internal/security"
	"github.com/hitoshi/payrollpro/internal/session"
	"github.com/hitoshi/payrollpro/internal/supabase"
	"github.com/hitoshi/payrollpro/internal/worker/reaper"
)

// bodyLimitSlack は給与明細の上限サイズに加えて許容するフォーム本体のサイズ。
const bodyLimitSlack int64 = 1 << 20

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. .env由来のログレベルを反映する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		_, err := io.WriteString(w, Usage())
		return err
	}

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
		slog.String("data_backend", cfg.DataBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで組み立てた依存関係。
type server struct {
	handler     http.Handler
	browsers    *browser.Registry
	reaper      *reaper.Job
	rateLimiter *middleware.RateLimiter
	db          *sql.DB // DATA_BACKEND=restの場合はnil
}

// close は保持しているリソースを解放する。
func (s *server) close() {
	s.browsers.CloseAll()
	s.rateLimiter.Stop()
	if s.db != nil {
		s.db.Close()
	}
}

// newServer は設定から全依存関係をワイヤリングする。
func newServer(cfg *config.Config, reg *prometheus.Registry) (*server, error) {
	collector := metrics.NewCollector(reg)

	// 1. リモートサービスのクライアント
	sb, err := supabase.New(supabase.Config{
		URL:        cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		HTTPClient: &http.Client{Timeout: cfg.RemoteTimeout},
		Observer:   collector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	// 2. リポジトリの初期化
	sanitizer := security.NewTextSanitizer()
	blobs := repository.NewStorageBlobStore(sb.Storage, cfg.PayslipBucket)

	var (
		employees     repository.EmployeeRepository
		payrolls      repository.PayrollRepository
		db            *sql.DB
		healthChecker handler.HealthChecker
	)

	switch cfg.DataBackend {
	case config.BackendPostgres:
		db, err = database.Open(cfg.DatabaseURL, database.DefaultPoolConfig)
		if err != nil {
			return nil, err
		}
		if err := database.Ping(context.Background(), db, cfg.RemoteTimeout); err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("database connection established")

		employees = repository.NewPostgresEmployeeRepo(db, sanitizer)
		payrolls = repository.NewPostgresPayrollRepo(db, sanitizer)
		healthChecker = db
	default:
		employees = repository.NewRestEmployeeRepo(sb.Rest, sanitizer)
		payrolls = repository.NewRestPayrollRepo(sb.Rest, sanitizer)
	}

	// 3. ドメインサービスの初期化
	payrollService := payroll.NewService(employees, payrolls, blobs, payroll.Config{
		MaxPayslipSize: cfg.PayslipMaxSize,
	})

	// 4. ブラウザごとの表示状態とセッションクライアント
	browsers := browser.NewRegistry(func() *session.Client {
		return session.NewClient(sb.Auth, session.ClientConfig{
			RefreshMargin: cfg.SessionRefreshMargin,
			Logger:        slog.Default(),
		})
	})

	job := reaper.NewJob(browsers, collector, slog.Default())
	job.IdleTTL = cfg.BrowserIdleTTL
	job.Interval = cfg.BrowserReapInterval

	// 5. ルーターの構築
	renderer, err := handler.NewRenderer()
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	// configのRateLimitは1分あたりの回数なのでNewRateLimiterConfigで1秒あたりに変換する
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth, cfg.RateLimitNewBrowser))

	deps := &handler.RouterDeps{
		Logger:   slog.Default(),
		Browsers: browsers,
		BrowserConfig: middleware.BrowserConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.BrowserIdleTTL,
		},
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:  rateLimiter,
		GateConfig:   middleware.GateConfig{WaitTimeout: cfg.GateWaitTimeout},
		MaxBodyBytes: cfg.PayslipMaxSize + bodyLimitSlack,

		TrustProxyHeaders: cfg.TrustProxyHeaders,

		Metrics:        collector,
		MetricsHandler: metrics.SetupMetricsRoute(reg),
		HealthChecker:  healthChecker,

		Renderer:       renderer,
		ShellWait:      cfg.GateWaitTimeout,
		PayrollService: payrollService,
		PayrollConfig:  handler.PayrollHandlerConfig{ReportPageSize: cfg.ReportPageSize},
	}

	return &server{
		handler:     handler.NewRouter(deps),
		browsers:    browsers,
		reaper:      job,
		rateLimiter: rateLimiter,
		db:          db,
	}, nil
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録するレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はWebサーバーモードで起動する。
// 全依存関係をワイヤリングし、ブラウザ状態の破棄ジョブとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	srv, err := newServer(cfg, newRegistry())
	if err != nil {
		return err
	}
	defer srv.close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ブラウザ状態の破棄ジョブをバックグラウンドで起動
	go srv.reaper.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
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
