// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/payrollpro/internal/browser"
	"github.com/hitoshi/payrollpro/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey      = contextKey("user")
	browserContextKey   = contextKey("browser")
	newBrowserKey       = contextKey("new_browser")
	requestIDContextKey = contextKey("request_id")
	csrfTokenContextKey = contextKey("csrf_token")
	requestInfoKey      = contextKey("request_info")
)

// requestInfo はログ出力のためにリクエスト処理中に判明した情報を保持する。
// ロギングミドルウェアが生成し、内側のミドルウェアが書き込む。
type requestInfo struct {
	userID string
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// ゲートミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (session.User, error) {
	user, ok := ctx.Value(userContextKey).(session.User)
	if !ok || user.ID == "" {
		return session.User{}, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user session.User) context.Context {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = user.ID
	}
	return context.WithValue(ctx, userContextKey, user)
}

// BrowserFromContext はリクエストコンテキストからブラウザ状態を取得する。
// ブラウザミドルウェアを通過したリクエストでのみ有効。
func BrowserFromContext(ctx context.Context) (*browser.State, error) {
	state, ok := ctx.Value(browserContextKey).(*browser.State)
	if !ok || state == nil {
		return nil, fmt.Errorf("browser state not found in context")
	}
	return state, nil
}

// ContextWithBrowser はコンテキストにブラウザ状態を注入する。
func ContextWithBrowser(ctx context.Context, state *browser.State) context.Context {
	return context.WithValue(ctx, browserContextKey, state)
}

// contextWithNewBrowser はブラウザ状態がこのリクエストで生成されたことを記録する。
func contextWithNewBrowser(ctx context.Context) context.Context {
	return context.WithValue(ctx, newBrowserKey, true)
}

// isNewBrowser はブラウザ状態がこのリクエストで生成されたかを返す。
func isNewBrowser(ctx context.Context) bool {
	created, _ := ctx.Value(newBrowserKey).(bool)
	return created
}

// RequestIDFromContext はリクエストIDを返す。未設定の場合は空文字を返す。
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// CSRFTokenFromContext はフォームに埋め込むCSRFトークンを返す。未設定の場合は空文字を返す。
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}
