package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/payrollpro/internal/browser"
	"github.com/hitoshi/payrollpro/internal/middleware"
	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/payroll"
	"github.com/hitoshi/payrollpro/internal/session"
)

// --- モック定義 ---

// mockProvider はsession.Providerのモック。
type mockProvider struct {
	mu          sync.Mutex
	signInCalls int

	signInFn  func(ctx context.Context, email, password string) (*session.Session, error)
	signUpFn  func(ctx context.Context, email, password string) error
	signOutFn func(ctx context.Context, accessToken string) error
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	m.mu.Lock()
	m.signInCalls++
	m.mu.Unlock()

	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &session.Session{
		AccessToken:  "access-" + email,
		RefreshToken: "refresh-" + email,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         session.User{ID: "user-" + email, Email: email},
	}, nil
}

func (m *mockProvider) SignUp(ctx context.Context, email, password string) error {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return nil
}

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

func (m *mockProvider) RefreshSession(ctx context.Context, refreshToken string) (*session.Session, error) {
	return nil, errors.New("refresh not supported")
}

func (m *mockProvider) SignInCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signInCalls
}

// mockPayrollService はPayrollServiceInterfaceのモック。
type mockPayrollService struct {
	now time.Time

	employeesFn     func(ctx context.Context) ([]model.Employee, error)
	reportFn        func(ctx context.Context) ([]model.PayrollEntry, error)
	openEntriesFn   func(ctx context.Context) ([]model.PayrollEntry, error)
	addEntryFn      func(ctx context.Context, in payroll.AddInput) (*model.PayrollEntry, error)
	uploadPayslipFn func(ctx context.Context, in payroll.UploadInput) error
}

func (m *mockPayrollService) Now() time.Time {
	if m.now.IsZero() {
		return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	}
	return m.now
}

func (m *mockPayrollService) MaxPayslipSize() int64 { return 1 << 20 }

func (m *mockPayrollService) Employees(ctx context.Context) ([]model.Employee, error) {
	if m.employeesFn != nil {
		return m.employeesFn(ctx)
	}
	return nil, nil
}

func (m *mockPayrollService) Report(ctx context.Context) ([]model.PayrollEntry, error) {
	if m.reportFn != nil {
		return m.reportFn(ctx)
	}
	return nil, nil
}

func (m *mockPayrollService) OpenEntries(ctx context.Context) ([]model.PayrollEntry, error) {
	if m.openEntriesFn != nil {
		return m.openEntriesFn(ctx)
	}
	return nil, nil
}

func (m *mockPayrollService) AddEntry(ctx context.Context, in payroll.AddInput) (*model.PayrollEntry, error) {
	if m.addEntryFn != nil {
		return m.addEntryFn(ctx, in)
	}
	return &model.PayrollEntry{ID: "p-new", EmployeeID: in.EmployeeID, Month: in.Month}, nil
}

func (m *mockPayrollService) UploadPayslip(ctx context.Context, in payroll.UploadInput) error {
	if m.uploadPayslipFn != nil {
		return m.uploadPayslipFn(ctx, in)
	}
	return nil
}

// mockHealthChecker はHealthCheckerのモック。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error { return m.err }

// --- ヘルパー ---

// testEnv はテスト用のルーターと依存関係。
type testEnv struct {
	router   http.Handler
	registry *browser.Registry
	provider *mockProvider
	service  *mockPayrollService
}

// newTestEnv はモックを使うルーターを構築する。depsFnで依存関係を上書きできる。
func newTestEnv(t *testing.T, provider *mockProvider, service *mockPayrollService, depsFn ...func(*RouterDeps)) *testEnv {
	t.Helper()

	if provider == nil {
		provider = &mockProvider{}
	}
	if service == nil {
		service = &mockPayrollService{}
	}

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}

	registry := browser.NewRegistry(func() *session.Client {
		return session.NewClient(provider, session.ClientConfig{})
	})
	t.Cleanup(registry.CloseAll)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     1000,
		GeneralBurst:    1000,
		AuthRate:        1000,
		AuthBurst:       1000,
		NewBrowserRate:  1000,
		NewBrowserBurst: 1000,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Browsers:       registry,
		RateLimiter:    rl,
		GateConfig:     middleware.GateConfig{WaitTimeout: time.Second},
		MaxBodyBytes:   4 << 20,
		Renderer:       renderer,
		ShellWait:      time.Second,
		PayrollService: service,
	}
	for _, fn := range depsFn {
		fn(deps)
	}

	return &testEnv{
		router:   NewRouter(deps),
		registry: registry,
		provider: provider,
		service:  service,
	}
}

// testResponse はレスポンスの要約。
type testResponse struct {
	status   int
	header   http.Header
	body     string
	location string
}

// testBrowser はCookieを保持するブラウザを模したクライアント。リダイレクトは追跡しない。
type testBrowser struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newTestBrowser(t *testing.T, env *testEnv) *testBrowser {
	t.Helper()

	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error: %v", err)
	}

	return &testBrowser{
		t:      t,
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *testBrowser) do(req *http.Request) testResponse {
	b.t.Helper()

	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s error: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("failed to read body: %v", err)
	}
	return testResponse{
		status:   resp.StatusCode,
		header:   resp.Header,
		body:     string(body),
		location: resp.Header.Get("Location"),
	}
}

func (b *testBrowser) get(path string) testResponse {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.server.URL+path, nil)
	if err != nil {
		b.t.Fatalf("NewRequest() error: %v", err)
	}
	return b.do(req)
}

// csrfToken はCookieのCSRFトークンを返す。まだ持っていない場合はログイン画面を取得して発行させる。
func (b *testBrowser) csrfToken() string {
	b.t.Helper()

	u, _ := url.Parse(b.server.URL)
	for i := 0; i < 2; i++ {
		for _, c := range b.client.Jar.Cookies(u) {
			if c.Name == "csrf_token" {
				return c.Value
			}
		}
		b.get("/login")
	}
	b.t.Fatal("csrf cookie was not issued")
	return ""
}

// postForm はCSRFトークン付きでフォームを送信する。
func (b *testBrowser) postForm(path string, form url.Values) testResponse {
	b.t.Helper()

	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFieldName, b.csrfToken())

	req, err := http.NewRequest(http.MethodPost, b.server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		b.t.Fatalf("NewRequest() error: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// postMultipart はCSRFトークン付きでmultipartフォームを送信する。fileがnilの場合はファイルを添付しない。
func (b *testBrowser) postMultipart(path string, fields map[string]string, file []byte) testResponse {
	b.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField(middleware.CSRFFieldName, b.csrfToken())
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if file != nil {
		fw, err := mw.CreateFormFile(payslipField, "payslip.pdf")
		if err != nil {
			b.t.Fatalf("CreateFormFile() error: %v", err)
		}
		fw.Write(file)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, b.server.URL+path, &buf)
	if err != nil {
		b.t.Fatalf("NewRequest() error: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

// signIn はログインフォームからサインインする。
func (b *testBrowser) signIn(email string) {
	b.t.Helper()
	resp := b.postForm("/login", url.Values{"email": {email}, "password": {"secret123"}})
	if resp.status != http.StatusSeeOther || resp.location != DashboardPath {
		b.t.Fatalf("sign in: status = %d, location = %q", resp.status, resp.location)
	}
}

// samplePDF はPDFとして判定される最小のファイル内容。
var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
