// Package session はリモート認証プロバイダーが発行したセッションを保持し、
// pull（GetSession）とpush（OnAuthChange）の2つの経路で観測者に公開する。
//
// セッション値はClientが単独で所有する。観測者はセッションを直接書き換えず、
// サインイン・サインアップ・サインアウト・リフレッシュを通じてのみ変化する。
package session

import (
	"context"
	"sync"
	"time"
)

// User はセッションに紐づく認証済みユーザーを表す。
type User struct {
	ID    string
	Email string
}

// Session はプロバイダーが発行した認証情報を表す。
// 中身はアプリケーションにとって不透明であり、外部呼び出しのBearerトークンとしてのみ使用する。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Expired は指定時刻においてアクセストークンが期限切れかどうかを返す。
// ExpiresAtがゼロ値の場合は期限なしとして扱う。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Event はセッション変化通知の種類を表す。
type Event string

const (
	// EventSignedIn はサインインによってセッションが発行されたことを示す。
	EventSignedIn Event = "SIGNED_IN"
	// EventSignedOut はサインアウトまたは期限切れによってセッションが失われたことを示す。
	EventSignedOut Event = "SIGNED_OUT"
	// EventTokenRefreshed はリフレッシュによってセッションが更新されたことを示す。
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Listener はセッション変化通知を受け取るコールバック。
// セッションが失われた場合はsessionにnilが渡される。
type Listener func(event Event, s *Session)

// Subscription はOnAuthChangeによる購読のハンドル。
type Subscription struct {
	once    sync.Once
	release func()
}

// NewSubscription は解除時にreleaseを1回だけ呼び出すSubscriptionを生成する。
func NewSubscription(release func()) *Subscription {
	return &Subscription{release: release}
}

// Unsubscribe は購読を解除する。複数回呼び出しても安全。
// 解除後に配信待ちの通知があってもリスナーは呼ばれない。
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// Provider はリモート認証プロバイダーのインターフェース。
type Provider interface {
	// SignInWithPassword はメールアドレスとパスワードでサインインしセッションを返す。
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp はアカウントを登録する。セッションは発行しない。
	SignUp(ctx context.Context, email, password string) error
	// SignOut はプロバイダー側のセッションを破棄する。
	SignOut(ctx context.Context, accessToken string) error
	// RefreshSession はリフレッシュトークンで新しいセッションを取得する。
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
}
