package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/payrollpro/internal/gate"
	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/session"
)

// --- モック定義 ---

type mockProvider struct {
	signOutFn func(ctx context.Context, accessToken string) error
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	return &session.Session{AccessToken: "a", User: session.User{ID: "u", Email: email}}, nil
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string) error { return nil }

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

func (m *mockProvider) RefreshSession(ctx context.Context, refreshToken string) (*session.Session, error) {
	return nil, errors.New("not supported")
}

func newShell(t *testing.T, provider *mockProvider, signedIn bool, opts ...Option) (*Shell, *session.Client) {
	t.Helper()
	client := session.NewClient(provider, session.ClientConfig{})
	t.Cleanup(client.Close)

	if signedIn {
		if _, err := client.SignIn(context.Background(), "a@example.com", "secret1"); err != nil {
			t.Fatalf("SignIn() error: %v", err)
		}
	}

	shell := NewShell(context.Background(), client, client, opts...)
	t.Cleanup(shell.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	shell.Await(ctx)
	return shell, client
}

// --- テスト ---

func TestShell_HiddenWhenUnauthenticated(t *testing.T) {
	shell, _ := newShell(t, &mockProvider{}, false)

	if shell.Authenticated() {
		t.Error("shell should not be authenticated")
	}
	if links := shell.VisibleLinks(); len(links) != 0 {
		t.Errorf("VisibleLinks() = %v, want none", links)
	}
	if shell.ShowSignOut() {
		t.Error("sign-out should be hidden")
	}
	if shell.UserEmail() != "" {
		t.Errorf("UserEmail() = %q, want empty", shell.UserEmail())
	}
}

func TestShell_VisibleWhenAuthenticated(t *testing.T) {
	shell, _ := newShell(t, &mockProvider{}, true)

	links := shell.VisibleLinks()
	want := []string{"/dashboard", "/add-payroll", "/uploads", "/reports"}
	if len(links) != len(want) {
		t.Fatalf("VisibleLinks() = %v", links)
	}
	for i, l := range links {
		if l.Path != want[i] {
			t.Errorf("link[%d] = %q, want %q", i, l.Path, want[i])
		}
	}
	if !shell.ShowSignOut() {
		t.Error("sign-out should be visible")
	}
	if shell.UserEmail() != "a@example.com" {
		t.Errorf("UserEmail() = %q", shell.UserEmail())
	}
}

func TestShell_HiddenWhileChecking(t *testing.T) {
	src := &blockingSource{}
	client := session.NewClient(&mockProvider{}, session.ClientConfig{})
	defer client.Close()
	shell := NewShell(context.Background(), src, client)
	defer shell.Close()

	if shell.Authenticated() || len(shell.VisibleLinks()) != 0 || shell.ShowSignOut() {
		t.Error("shell should hide links while the session is unknown")
	}
}

func TestShell_SignOutSuccess(t *testing.T) {
	shell, _ := newShell(t, &mockProvider{}, true)

	res := shell.SignOut(context.Background())
	if res.Redirect != "/login" {
		t.Errorf("Redirect = %q, want /login", res.Redirect)
	}
	if res.Notice != model.SuccessNotice("Logged out successfully") {
		t.Errorf("Notice = %+v", res.Notice)
	}
	if shell.Authenticated() {
		t.Error("shell should observe SIGNED_OUT through its subscription")
	}
}

func TestShell_SignOutFailureStillRedirects(t *testing.T) {
	provider := &mockProvider{
		signOutFn: func(ctx context.Context, accessToken string) error {
			return errors.New("network down")
		},
	}
	shell, _ := newShell(t, provider, true)

	res := shell.SignOut(context.Background())
	if res.Redirect != "/login" {
		t.Errorf("Redirect = %q, want /login", res.Redirect)
	}
	if res.Notice != model.ErrorNotice("Error logging out") {
		t.Errorf("Notice = %+v", res.Notice)
	}
}

func TestShell_MirrorsNotifications(t *testing.T) {
	shell, client := newShell(t, &mockProvider{}, false)
	if shell.Authenticated() {
		t.Fatal("shell should start unauthenticated")
	}

	if _, err := client.SignIn(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	if !shell.Authenticated() {
		t.Error("shell should follow SIGNED_IN")
	}
}

func TestShell_Options(t *testing.T) {
	shell, _ := newShell(t, &mockProvider{}, false, WithMenuOpen(true), WithCurrentPath("/reports"))

	if !shell.MenuOpen() {
		t.Error("MenuOpen() = false, want true")
	}
	if shell.CurrentPath() != "/reports" {
		t.Errorf("CurrentPath() = %q", shell.CurrentPath())
	}
}

// blockingSource は照会が完了しないgate.Source。
type blockingSource struct{}

func (blockingSource) GetSession(ctx context.Context) (*session.Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSource) OnAuthChange(l session.Listener) *session.Subscription {
	return session.NewSubscription(nil)
}

var _ gate.Source = blockingSource{}
