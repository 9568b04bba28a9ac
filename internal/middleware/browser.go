package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/payrollpro/internal/browser"
)

// BrowserCookieName はブラウザ状態を識別するCookieの名前。
const BrowserCookieName = "browser_id"

// BrowserRegistry はブラウザ状態の取得・生成に必要なインターフェース。
// browser.Registryが満たす。
type BrowserRegistry interface {
	Get(id string) (*browser.State, bool)
	Create() *browser.State
}

// BrowserAdmission は新しいブラウザ状態の生成を許可するかを判定するインターフェース。
// 拒否する場合はレスポンスを書き込んだうえでfalseを返す。RateLimiterが満たす。
type BrowserAdmission interface {
	AdmitNewBrowser(w http.ResponseWriter, r *http.Request) bool
}

// BrowserConfig はブラウザミドルウェアの設定。
type BrowserConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       time.Duration
	Admission    BrowserAdmission // nilの場合は常に生成する
}

// NewBrowserMiddleware はCookieのIDでブラウザ状態を解決し、コンテキストに注入するミドルウェアを返す。
// Cookieがない、または状態が破棄済みの場合はAdmissionの許可を得たうえで新しい状態を生成し、Cookieを発行する。
func NewBrowserMiddleware(registry BrowserRegistry, config BrowserConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(BrowserCookieName); err == nil {
				id = cookie.Value
			}

			if state, ok := registry.Get(id); ok {
				next.ServeHTTP(w, r.WithContext(ContextWithBrowser(r.Context(), state)))
				return
			}

			if config.Admission != nil && !config.Admission.AdmitNewBrowser(w, r) {
				return
			}

			state := registry.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     BrowserCookieName,
				Value:    state.ID,
				Path:     "/",
				Domain:   config.CookieDomain,
				MaxAge:   int(config.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   config.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := contextWithNewBrowser(ContextWithBrowser(r.Context(), state))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
