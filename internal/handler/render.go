// Package handler はHTTPハンドラーとルーティングを提供する。
//
// 画面はhtml/templateでサーバー側に描画する。テンプレートはバイナリに埋め込む。
package handler

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/payrollpro/internal/middleware"
	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/navigation"
	"github.com/hitoshi/payrollpro/internal/payroll"
	"github.com/hitoshi/payrollpro/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

// 画面テンプレート名
const (
	pageLogin      = "login"
	pageDashboard  = "dashboard"
	pageAddPayroll = "add_payroll"
	pageUploads    = "uploads"
	pageReports    = "reports"
)

var pageNames = []string{pageLogin, pageDashboard, pageAddPayroll, pageUploads, pageReports}

// defaultShellWait はシェルのゲートの初回照会を待つデフォルトの時間。
const defaultShellWait = 3 * time.Second

// Renderer は画面テンプレートの集合。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"formatSalary": payroll.FormatSalary,
		"formatMonth":  payroll.FormatMonth,
		"safeLink":     security.SafeLink,
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// pageData は全画面共通のテンプレートデータ。
type pageData struct {
	Title     string
	CSRFField string
	CSRFToken string
	Notices   []model.Notice
	Shell     *navigation.Shell
	Year      int
	Content   any
}

// View はナビゲーションシェルと通知を含む画面の描画を行う。
type View struct {
	renderer  *Renderer
	shellWait time.Duration
}

// NewView はViewを生成する。shellWaitが0以下の場合はデフォルト値を使用する。
func NewView(renderer *Renderer, shellWait time.Duration) *View {
	if shellWait <= 0 {
		shellWait = defaultShellWait
	}
	return &View{renderer: renderer, shellWait: shellWait}
}

// Render はページを描画してstatusで書き出す。
// 描画ごとにシェルを生成し、専用ゲートの初回照会を待ってから破棄する。
// ブラウザに溜まっている通知はこの描画で消費する。
func (v *View) Render(w http.ResponseWriter, r *http.Request, status int, page, title string, content any) {
	state, err := middleware.BrowserFromContext(r.Context())
	if err != nil {
		slog.Error("render: browser state missing", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	shell := navigation.NewShell(r.Context(), state.Auth, state.Auth,
		navigation.WithMenuOpen(state.MenuOpen()),
		navigation.WithCurrentPath(r.URL.Path),
	)
	defer shell.Close()

	waitCtx, cancel := context.WithTimeout(r.Context(), v.shellWait)
	shell.Await(waitCtx)
	cancel()

	t, ok := v.renderer.pages[page]
	if !ok {
		slog.Error("render: unknown page", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:     title,
		CSRFField: middleware.CSRFFieldName,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Notices:   state.TakeNotices(),
		Shell:     shell,
		Year:      time.Now().Year(),
		Content:   content,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// redirect はブラウザに通知を積んでから303でリダイレクトする。
func redirect(w http.ResponseWriter, r *http.Request, path string, notices ...model.Notice) {
	if state, err := middleware.BrowserFromContext(r.Context()); err == nil {
		for _, n := range notices {
			state.AddNotice(n)
		}
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// addNotice はブラウザに通知を積む。次の描画で表示される。
func addNotice(r *http.Request, n model.Notice) {
	if state, err := middleware.BrowserFromContext(r.Context()); err == nil {
		state.AddNotice(n)
	}
}
