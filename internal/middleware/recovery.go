package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// errorPage はpanic時に返すページ。入力途中のフォーム内容や給与データは含めない。
const errorPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PayrollPro</title>
</head>
<body>
<p>An unexpected error occurred. Please try again.</p>
<p><a href="/dashboard">Back to dashboard</a></p>
</body>
</html>`

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500のエラーページを返すミドルウェアを生成する。
// 最外周に置くため、リクエストIDは内側のミドルウェアが設定したレスポンスヘッダーから読む。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", w.Header().Get(requestIDHeader)),
					slog.String("stack", string(debug.Stack())),
				)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(errorPage))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
