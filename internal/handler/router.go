package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/payrollpro/internal/middleware"
	"github.com/hitoshi/payrollpro/internal/navigation"
)

// StatusRecorder はHTTPステータスとゲート判定を記録するインターフェース。
// metrics.Collectorが満たす。
type StatusRecorder interface {
	middleware.StatusRecorder
	middleware.GateRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Browsers      middleware.BrowserRegistry
	BrowserConfig middleware.BrowserConfig
	CSRFConfig    middleware.CSRFConfig
	RateLimiter   *middleware.RateLimiter
	GateConfig    middleware.GateConfig
	MaxBodyBytes  int64

	// TrustProxyHeaders はX-Forwarded-For等からクライアントIPを復元するか。
	// リバースプロキシの背後で動かす場合のみ有効にする。
	TrustProxyHeaders bool

	// 監視
	Metrics        StatusRecorder // nilの場合は記録しない
	MetricsHandler http.Handler   // nilの場合は/metricsを公開しない
	HealthChecker  HealthChecker  // nilの場合は生存のみを返す

	// 画面
	Renderer       *Renderer
	ShellWait      time.Duration
	PayrollService PayrollServiceInterface
	PayrollConfig  PayrollHandlerConfig
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	[RealIP] → Recovery → RequestID → Logging → SecurityHeaders → Metrics →
//	Browser → BodyLimit → CSRF → RateLimit(Auth | General) → Gate
//
// Browserは新しい状態の生成をRateLimiterのクライアントIPごとの上限で制限する。
// /health と /metrics はブラウザ状態を生成しないようBrowserより前に配置する。
// 未定義のパスはログイン画面へリダイレクトする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	gateConfig := deps.GateConfig
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
		if gateConfig.Recorder == nil {
			gateConfig.Recorder = deps.Metrics
		}
	}

	// --- ブラウザ状態を持たないルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	browserConfig := deps.BrowserConfig
	if browserConfig.Admission == nil && deps.RateLimiter != nil {
		browserConfig.Admission = deps.RateLimiter
	}

	view := NewView(deps.Renderer, deps.ShellWait)
	authHandler := NewAuthHandler(view)
	payrollHandler := NewPayrollHandler(deps.PayrollService, view, deps.PayrollConfig)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBrowserMiddleware(deps.Browsers, browserConfig))
		r.Use(middleware.NewBodyLimitMiddleware(deps.MaxBodyBytes))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- 認証不要のルート ---

		// ログイン（認証試行のレート制限を追加）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Get("/login", authHandler.LoginPage)
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// シェルの操作
			r.Post("/logout", authHandler.Logout)
			r.Post("/menu", authHandler.ToggleMenu)

			// --- 認証が必要なルート ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewGateMiddleware(gateConfig))

				r.Get("/dashboard", payrollHandler.Dashboard)
				r.Get("/add-payroll", payrollHandler.AddPayrollPage)
				r.Post("/add-payroll", payrollHandler.AddPayroll)
				r.Get("/uploads", payrollHandler.UploadsPage)
				r.Post("/uploads", payrollHandler.Uploads)
				r.Get("/reports", payrollHandler.Reports)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, navigation.LoginPath, http.StatusSeeOther)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, navigation.LoginPath, http.StatusSeeOther)
	})

	return r
}
