// Package navigation はナビゲーションシェル（リンク一覧・サインアウト・折りたたみメニュー）を提供する。
//
// シェルは保護ページのゲートとは独立した自分専用のゲートでセッションを観測する。
// リンクとサインアウト操作は、そのゲートがAuthenticatedの場合にのみ表示する。
package navigation

import (
	"context"
	"log/slog"

	"github.com/hitoshi/payrollpro/internal/gate"
	"github.com/hitoshi/payrollpro/internal/model"
)

// LoginPath はサインアウト後の遷移先。
const LoginPath = "/login"

// Link はナビゲーションリンクを表す。
type Link struct {
	Label string
	Path  string
}

// Links はシェルに表示する固定のリンク一覧。
var Links = []Link{
	{Label: "Dashboard", Path: "/dashboard"},
	{Label: "Add Payroll", Path: "/add-payroll"},
	{Label: "Upload Payslip", Path: "/uploads"},
	{Label: "Reports", Path: "/reports"},
}

// 通知メッセージ
const (
	MsgLoggedOut   = "Logged out successfully"
	MsgLogoutError = "Error logging out"
)

// SignOuter はサインアウト操作のインターフェース。*session.Clientが満たす。
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Shell はナビゲーションシェル。1回の画面表示ごとに生成し、表示後にCloseする。
type Shell struct {
	observer *gate.Gate
	auth     SignOuter
	menuOpen bool
	current  string
}

// Option はShellの設定関数。
type Option func(*Shell)

// WithMenuOpen は折りたたみメニューの開閉状態を設定する。
func WithMenuOpen(open bool) Option {
	return func(s *Shell) { s.menuOpen = open }
}

// WithCurrentPath は現在表示中のパスを設定する。該当するリンクを強調表示に使う。
func WithCurrentPath(path string) Option {
	return func(s *Shell) { s.current = path }
}

// NewShell はシェルを生成し、専用のゲートをマウントする。
func NewShell(ctx context.Context, source gate.Source, auth SignOuter, opts ...Option) *Shell {
	s := &Shell{
		observer: gate.New(source),
		auth:     auth,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.observer.Mount(ctx)
	return s
}

// Await は専用ゲートの初回照会の完了をctxの範囲で待つ。
// 待機が打ち切られた場合もエラーは返さず、リンクは非表示のままとなる。
func (s *Shell) Await(ctx context.Context) gate.State {
	state, _ := s.observer.Await(ctx)
	return state
}

// Authenticated は専用ゲートがAuthenticatedかどうかを返す。
func (s *Shell) Authenticated() bool {
	return s.observer.State() == gate.Authenticated
}

// VisibleLinks は表示するリンクを返す。未認証・照会中の場合は空。
func (s *Shell) VisibleLinks() []Link {
	if !s.Authenticated() {
		return nil
	}
	return Links
}

// ShowSignOut はサインアウト操作を表示するかどうかを返す。
func (s *Shell) ShowSignOut() bool {
	return s.Authenticated()
}

// MenuOpen は折りたたみメニューが開いているかを返す。表示上の状態のみ。
func (s *Shell) MenuOpen() bool {
	return s.menuOpen
}

// CurrentPath は現在表示中のパスを返す。
func (s *Shell) CurrentPath() string {
	return s.current
}

// UserEmail は認証済みの場合にユーザーのメールアドレスを返す。
func (s *Shell) UserEmail() string {
	if sess := s.observer.Session(); sess != nil {
		return sess.User.Email
	}
	return ""
}

// SignOutResult はサインアウトの結果。
type SignOutResult struct {
	Redirect string
	Notice   model.Notice
}

// SignOut はプロバイダーでサインアウトする。成否にかかわらずログイン画面へ遷移する。
// シェルの表示状態は直接書き換えず、購読経由の通知でのみ変化する。
func (s *Shell) SignOut(ctx context.Context) SignOutResult {
	if err := s.auth.SignOut(ctx); err != nil {
		slog.Error("sign-out failed", slog.String("error", err.Error()))
		return SignOutResult{Redirect: LoginPath, Notice: model.ErrorNotice(MsgLogoutError)}
	}
	return SignOutResult{Redirect: LoginPath, Notice: model.SuccessNotice(MsgLoggedOut)}
}

// Close は専用ゲートを破棄する。
func (s *Shell) Close() {
	s.observer.Dispose()
}
