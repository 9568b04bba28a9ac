package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/payrollpro/internal/session"
)

// AuthAPI はGoTrue互換の認証エンドポイントのクライアント。
// session.Providerを実装する。
type AuthAPI struct {
	c *Client
}

// credentials はパスワード認証・サインアップのリクエストボディ。
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *authUser `json:"user"`
}

// authUser はレスポンスに含まれるユーザー情報。
type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
// POST /auth/v1/token?grant_type=password
func (a *AuthAPI) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	body, err := jsonBody(credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	err = a.c.send(ctx, request{
		service:   "auth",
		operation: "sign_in",
		method:    http.MethodPost,
		path:      "/auth/v1/token",
		query:     url.Values{"grant_type": {"password"}},
		body:      body,
		bearer:    a.c.anonKey,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return toSession(&resp, time.Now())
}

// SignUp はアカウントを登録する。
// POST /auth/v1/signup
func (a *AuthAPI) SignUp(ctx context.Context, email, password string) error {
	body, err := jsonBody(credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	return a.c.send(ctx, request{
		service:   "auth",
		operation: "sign_up",
		method:    http.MethodPost,
		path:      "/auth/v1/signup",
		body:      body,
		bearer:    a.c.anonKey,
	}, nil)
}

// SignOut はアクセストークンに紐づくプロバイダー側のセッションを破棄する。
// 既に失効しているセッション（401, 403, 404）は成功として扱う。
// POST /auth/v1/logout
func (a *AuthAPI) SignOut(ctx context.Context, accessToken string) error {
	err := a.c.send(ctx, request{
		service:   "auth",
		operation: "sign_out",
		method:    http.MethodPost,
		path:      "/auth/v1/logout",
		bearer:    accessToken,
	}, nil)
	if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden) || IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// RefreshSession はリフレッシュトークンで新しいセッションを取得する。
// POST /auth/v1/token?grant_type=refresh_token
func (a *AuthAPI) RefreshSession(ctx context.Context, refreshToken string) (*session.Session, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}

	body, err := jsonBody(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	err = a.c.send(ctx, request{
		service:   "auth",
		operation: "refresh",
		method:    http.MethodPost,
		path:      "/auth/v1/token",
		query:     url.Values{"grant_type": {"refresh_token"}},
		body:      body,
		bearer:    a.c.anonKey,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return toSession(&resp, time.Now())
}

// toSession はトークンレスポンスを検証してsession.Sessionに変換する。
// 有効期限やユーザー情報がレスポンスにない場合はアクセストークンのクレームで補う。
func toSession(resp *tokenResponse, now time.Time) (*session.Session, error) {
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	s := &session.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}

	switch {
	case resp.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if resp.User != nil {
		s.User = session.User{ID: resp.User.ID, Email: resp.User.Email}
	}

	if s.User.ID == "" || s.ExpiresAt.IsZero() {
		claims, err := readTokenClaims(resp.AccessToken)
		if err != nil {
			return nil, err
		}
		if s.User.ID == "" {
			s.User.ID = claims.Subject
		}
		if s.User.Email == "" {
			s.User.Email = claims.Email
		}
		if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time
		}
	}

	if s.User.ID == "" {
		return nil, fmt.Errorf("session has no user")
	}
	return s, nil
}

// compile-time interface check
var _ session.Provider = (*AuthAPI)(nil)
