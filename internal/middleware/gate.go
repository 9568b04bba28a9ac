package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/payrollpro/internal/gate"
	"github.com/hitoshi/payrollpro/internal/supabase"
)

// LoginPath は未認証時のリダイレクト先。
const LoginPath = "/login"

// defaultGateWait はGateConfig.WaitTimeoutが未設定の場合の待機時間。
const defaultGateWait = 3 * time.Second

// GateRecorder はゲートの判定結果を記録するインターフェース。
// metrics.Collectorが満たす。
type GateRecorder interface {
	RecordGateDecision(state string)
}

// GateConfig はゲートミドルウェアの設定。
type GateConfig struct {
	// WaitTimeout は初回照会の完了を待つ最大時間。超えた場合は待機ページを返す。
	WaitTimeout time.Duration
	Recorder    GateRecorder
}

// waitingPage はCheckingのまま待機時間を超えた場合に返すページ。保護された内容は含めない。
const waitingPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="1">
<title>Loading...</title>
</head>
<body>
<main class="waiting"><p>Loading...</p></main>
</body>
</html>
`

// NewGateMiddleware は保護ページの認証ゲートミドルウェアを返す。
// リクエストごとにブラウザのセッションクライアントを観測するGateをマウントし、応答後に破棄する。
//
//   - Authenticated: ユーザーとアクセストークンをコンテキストに注入して後続を実行する
//   - Unauthenticated: ログイン画面へ303でリダイレクトする
//   - Checking（待機時間超過）: 自動再読み込みする待機ページを返す
func NewGateMiddleware(config GateConfig) func(next http.Handler) http.Handler {
	wait := config.WaitTimeout
	if wait <= 0 {
		wait = defaultGateWait
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, err := BrowserFromContext(r.Context())
			if err != nil {
				slog.Error("gate: browser state missing", slog.String("error", err.Error()))
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}

			g := gate.New(state.Auth)
			g.Mount(r.Context())
			defer g.Dispose()

			waitCtx, cancel := context.WithTimeout(r.Context(), wait)
			decision, awaitErr := g.Await(waitCtx)
			cancel()

			if config.Recorder != nil {
				config.Recorder.RecordGateDecision(decision.String())
			}

			switch decision {
			case gate.Authenticated:
				sess := g.Session()
				if sess == nil {
					http.Redirect(w, r, LoginPath, http.StatusSeeOther)
					return
				}
				ctx := ContextWithUser(r.Context(), sess.User)
				ctx = supabase.WithAccessToken(ctx, sess.AccessToken)
				next.ServeHTTP(w, r.WithContext(ctx))

			case gate.Unauthenticated:
				if checkErr := g.CheckError(); checkErr != nil {
					slog.Warn("session check failed, treating as signed out",
						slog.String("path", r.URL.Path),
						slog.String("error", checkErr.Error()),
					)
				}
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)

			default:
				if awaitErr != nil && !errors.Is(awaitErr, context.DeadlineExceeded) {
					// クライアント切断。応答先がないため何も書かない
					return
				}
				writeWaitingPage(w)
			}
		})
	}
}

func writeWaitingPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(waitingPage))
}
