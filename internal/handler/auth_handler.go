package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/payrollpro/internal/middleware"
	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/navigation"
)

// ログイン画面のモード
const (
	modeSignIn = "signin"
	modeSignUp = "signup"
)

// 通知メッセージ
const (
	MsgLoggedIn   = "Logged in successfully!"
	MsgRegistered = "Registration successful! You can now log in."
)

// DashboardPath はサインイン後の遷移先。
const DashboardPath = "/dashboard"

// loginView はログイン画面のテンプレートデータ。
type loginView struct {
	Mode   string
	SignUp bool
	Email  string
}

// AuthHandler はサインイン・サインアップ・サインアウトとシェルの操作を扱う。
// セッションはリクエストのブラウザが持つセッションクライアントで管理する。
type AuthHandler struct {
	view *View
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(view *View) *AuthHandler {
	return &AuthHandler{view: view}
}

// LoginPage はログイン画面を表示する。
// GET /login?mode=signup
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, parseMode(r.URL.Query().Get("mode")), "")
}

// Login はサインインまたはサインアップを行う。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := middleware.BrowserFromContext(r.Context())
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	mode := parseMode(r.FormValue("mode"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if err := validateCredentials(email, password); err != nil {
		addNotice(r, model.ErrorNotice(noticeMessage(err)))
		h.renderLogin(w, r, http.StatusUnprocessableEntity, mode, email)
		return
	}

	if mode == modeSignUp {
		if err := state.Auth.SignUp(r.Context(), email, password); err != nil {
			slog.Warn("サインアップに失敗しました", slog.String("error", err.Error()))
			addNotice(r, model.ErrorNotice(noticeMessage(err)))
			h.renderLogin(w, r, http.StatusUnprocessableEntity, mode, email)
			return
		}
		redirect(w, r, navigation.LoginPath, model.SuccessNotice(MsgRegistered))
		return
	}

	if _, err := state.Auth.SignIn(r.Context(), email, password); err != nil {
		slog.Warn("サインインに失敗しました", slog.String("error", err.Error()))
		addNotice(r, model.ErrorNotice(noticeMessage(err)))
		h.renderLogin(w, r, http.StatusUnprocessableEntity, mode, email)
		return
	}

	redirect(w, r, DashboardPath, model.SuccessNotice(MsgLoggedIn))
}

// Logout はシェルのサインアウト操作を行う。成否にかかわらずログイン画面へ遷移する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	state, err := middleware.BrowserFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, navigation.LoginPath, http.StatusSeeOther)
		return
	}

	shell := navigation.NewShell(r.Context(), state.Auth, state.Auth)
	defer shell.Close()

	result := shell.SignOut(r.Context())
	if state.MenuOpen() {
		state.ToggleMenu()
	}
	redirect(w, r, result.Redirect, result.Notice)
}

// ToggleMenu は折りたたみメニューの開閉を切り替え、元の画面へ戻る。
// POST /menu
func (h *AuthHandler) ToggleMenu(w http.ResponseWriter, r *http.Request) {
	if state, err := middleware.BrowserFromContext(r.Context()); err == nil {
		state.ToggleMenu()
	}
	http.Redirect(w, r, safeReturnPath(r.FormValue("return_to")), http.StatusSeeOther)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, mode, email string) {
	h.view.Render(w, r, status, pageLogin, "", loginView{
		Mode:   mode,
		SignUp: mode == modeSignUp,
		Email:  email,
	})
}

// validateCredentials はメールアドレスとパスワードの必須チェックと最小長チェックを行う。
func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return model.NewCredentialsMissingError()
	}
	if utf8.RuneCountInString(password) < model.MinPasswordLength {
		return model.NewPasswordTooShortError()
	}
	return nil
}

func parseMode(raw string) string {
	if raw == modeSignUp {
		return modeSignUp
	}
	return modeSignIn
}

// safeReturnPath はアプリケーション内の絶対パスのみを戻り先として許可する。
func safeReturnPath(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return navigation.LoginPath
	}
	return raw
}
