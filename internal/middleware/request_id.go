package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader はリクエストIDを受け渡すヘッダー名。
const requestIDHeader = "X-Request-ID"

// NewRequestIDMiddleware はリクエストごとにIDを採番し、コンテキストとレスポンスヘッダーに設定する。
// 上流のプロキシがX-Request-IDを付与している場合はその値を引き継ぐ。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			ctx := context.WithValue(r.Context(), requestIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
