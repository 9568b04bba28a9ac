package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/payrollpro/internal/browser"
	"github.com/hitoshi/payrollpro/internal/session"
)

// --- モック定義 ---

// mockProvider はsession.Providerのモック。
type mockProvider struct {
	signInFn  func(ctx context.Context, email, password string) (*session.Session, error)
	refreshFn func(ctx context.Context, refreshToken string) (*session.Session, error)
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &session.Session{
		AccessToken: "access-" + email,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        session.User{ID: "user-" + email, Email: email},
	}, nil
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string) error {
	return nil
}

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

func (m *mockProvider) RefreshSession(ctx context.Context, refreshToken string) (*session.Session, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, errors.New("refresh not supported")
}

// mockRecorder はゲート判定とHTTPステータスの記録を保持する。
type mockRecorder struct {
	decisions []string
	statuses  []int
}

func (m *mockRecorder) RecordGateDecision(state string) { m.decisions = append(m.decisions, state) }
func (m *mockRecorder) RecordHTTPStatus(statusCode int) { m.statuses = append(m.statuses, statusCode) }

// --- ヘルパー ---

// newTestRegistry はモックプロバイダーを使うブラウザレジストリを生成する。
func newTestRegistry(t *testing.T, provider session.Provider) *browser.Registry {
	t.Helper()
	reg := browser.NewRegistry(func() *session.Client {
		return session.NewClient(provider, session.ClientConfig{})
	})
	t.Cleanup(reg.CloseAll)
	return reg
}

// signedInBrowser はサインイン済みのブラウザ状態を生成する。
func signedInBrowser(t *testing.T, reg *browser.Registry, email string) *browser.State {
	t.Helper()
	state := reg.Create()
	if _, err := state.Auth.SignIn(context.Background(), email, "password"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	return state
}

// okHandler は200を返すハンドラー。
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})
