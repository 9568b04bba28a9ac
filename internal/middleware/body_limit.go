package middleware

import "net/http"

// NewBodyLimitMiddleware はリクエストボディをmaxBytesまでに制限するミドルウェアを返す。
// 上限を超えた読み込みはエラーとなり、フォーム解析が失敗する。
func NewBodyLimitMiddleware(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
