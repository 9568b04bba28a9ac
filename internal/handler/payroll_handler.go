package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/payrollpro/internal/middleware"
	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/payroll"
)

// PayrollServiceInterface は給与レコード画面が必要とするサービスインターフェース。
type PayrollServiceInterface interface {
	Now() time.Time
	MaxPayslipSize() int64
	Employees(ctx context.Context) ([]model.Employee, error)
	Report(ctx context.Context) ([]model.PayrollEntry, error)
	OpenEntries(ctx context.Context) ([]model.PayrollEntry, error)
	AddEntry(ctx context.Context, in payroll.AddInput) (*model.PayrollEntry, error)
	UploadPayslip(ctx context.Context, in payroll.UploadInput) error
}

// 通知メッセージ
const (
	MsgPayrollAdded    = "Payroll added successfully"
	MsgPayslipUploaded = "Payslip uploaded successfully"
)

// 画面のパス
const (
	ReportsPath = "/reports"
	UploadsPath = "/uploads"
)

// アップロード画面のフォーム操作
const (
	actionSelectEmployee = "select_employee"
	actionUpload         = "upload"
)

// payslipField はアップロードフォームのファイルフィールド名。
const payslipField = "payslip"

// PayrollHandlerConfig は給与レコード画面の設定。
type PayrollHandlerConfig struct {
	ReportPageSize int // 0以下の場合はpayroll.DefaultPageSize
}

// PayrollHandler はダッシュボード・給与登録・給与明細アップロード・レポートの各画面を扱う。
// 各画面は表示のたびにリモートから取得し直す。
type PayrollHandler struct {
	service  PayrollServiceInterface
	view     *View
	pageSize int
}

// NewPayrollHandler はPayrollHandlerを生成する。
func NewPayrollHandler(service PayrollServiceInterface, view *View, config PayrollHandlerConfig) *PayrollHandler {
	size := config.ReportPageSize
	if size <= 0 {
		size = payroll.DefaultPageSize
	}
	return &PayrollHandler{service: service, view: view, pageSize: size}
}

// --- ダッシュボード ---

type dashboardView struct {
	Employees []model.Employee
}

// Dashboard は従業員一覧を名前順で表示する。
// GET /dashboard
func (h *PayrollHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.Employees(r.Context())
	if err != nil {
		logFetchError(r, "従業員一覧の取得に失敗しました", err)
		addNotice(r, model.ErrorNotice("Error fetching employees: "+noticeMessage(err)))
	}
	h.view.Render(w, r, http.StatusOK, pageDashboard, "Employee Dashboard", dashboardView{Employees: employees})
}

// --- 給与登録 ---

type addPayrollView struct {
	Employees []model.Employee
	Form      payroll.AddInput
}

// AddPayrollPage は給与登録フォームを表示する。年月の初期値は当月。
// GET /add-payroll
func (h *PayrollHandler) AddPayrollPage(w http.ResponseWriter, r *http.Request) {
	form := payroll.AddInput{Month: payroll.CurrentMonth(h.service.Now())}
	h.renderAddPayroll(w, r, http.StatusOK, form)
}

// AddPayroll は給与エントリを登録し、成功時はレポート画面へ遷移する。
// 失敗時は入力値を保持したままフォームを再表示する。
// POST /add-payroll
func (h *PayrollHandler) AddPayroll(w http.ResponseWriter, r *http.Request) {
	form := payroll.AddInput{
		EmployeeID: r.FormValue("employee_id"),
		Month:      r.FormValue("month"),
		Salary:     r.FormValue("salary"),
	}

	if _, err := h.service.AddEntry(r.Context(), form); err != nil {
		var appErr *model.AppError
		if !errors.As(err, &appErr) {
			logFetchError(r, "給与エントリの登録に失敗しました", err)
		}
		addNotice(r, model.ErrorNotice("Error adding payroll: "+noticeMessage(err)))
		h.renderAddPayroll(w, r, http.StatusUnprocessableEntity, form)
		return
	}

	redirect(w, r, ReportsPath, model.SuccessNotice(MsgPayrollAdded))
}

func (h *PayrollHandler) renderAddPayroll(w http.ResponseWriter, r *http.Request, status int, form payroll.AddInput) {
	employees, err := h.service.Employees(r.Context())
	if err != nil {
		logFetchError(r, "従業員一覧の取得に失敗しました", err)
		addNotice(r, model.ErrorNotice("Error fetching employees: "+noticeMessage(err)))
	}
	h.view.Render(w, r, status, pageAddPayroll, "Add Payroll", addPayrollView{
		Employees: employees,
		Form:      form,
	})
}

// --- 給与明細アップロード ---

type uploadsView struct {
	Employees []model.Employee
	Form      payroll.UploadForm
	Months    []payroll.MonthOption
	MaxSizeKB int64
}

// UploadsPage は給与明細アップロード画面を表示する。
// 従業員の選択状態はブラウザごとに保持し、選択中の従業員の未添付エントリのみを年月の選択肢とする。
// GET /uploads
func (h *PayrollHandler) UploadsPage(w http.ResponseWriter, r *http.Request) {
	state, err := middleware.BrowserFromContext(r.Context())
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	form := state.UploadForm()

	employees, err := h.service.Employees(r.Context())
	var open []model.PayrollEntry
	if err == nil {
		open, err = h.service.OpenEntries(r.Context())
	}
	if err != nil {
		logFetchError(r, "アップロード画面のデータ取得に失敗しました", err)
		addNotice(r, model.ErrorNotice("Error fetching data: "+noticeMessage(err)))
	}

	h.view.Render(w, r, http.StatusOK, pageUploads, "Upload Payslip", uploadsView{
		Employees: employees,
		Form:      form,
		Months:    payroll.AvailableMonths(open, form.EmployeeID),
		MaxSizeKB: h.service.MaxPayslipSize() / 1024,
	})
}

// Uploads は従業員の選択または給与明細のアップロードを行い、アップロード画面へ戻る。
// POST /uploads
func (h *PayrollHandler) Uploads(w http.ResponseWriter, r *http.Request) {
	state, err := middleware.BrowserFromContext(r.Context())
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if r.FormValue("action") == actionSelectEmployee {
		employeeID := strings.TrimSpace(r.FormValue("employee_id"))
		state.UpdateUploadForm(func(f *payroll.UploadForm) { f.SelectEmployee(employeeID) })
		http.Redirect(w, r, UploadsPath, http.StatusSeeOther)
		return
	}

	entryID := strings.TrimSpace(r.FormValue("entry_id"))
	form := state.UpdateUploadForm(func(f *payroll.UploadForm) { f.SelectEntry(entryID) })

	data, err := h.readPayslip(r)
	if err != nil {
		redirect(w, r, UploadsPath, model.ErrorNotice("Error uploading payslip: "+noticeMessage(err)))
		return
	}

	err = h.service.UploadPayslip(r.Context(), payroll.UploadInput{
		EmployeeID: form.EmployeeID,
		EntryID:    form.EntryID,
		File:       data,
	})
	if err != nil {
		var appErr *model.AppError
		switch {
		case errors.As(err, &appErr) && appErr.Code == model.ErrCodeUploadIncomplete:
			redirect(w, r, UploadsPath, model.ErrorNotice(appErr.Message))
		default:
			if appErr == nil {
				logFetchError(r, "給与明細のアップロードに失敗しました", err)
			}
			redirect(w, r, UploadsPath, model.ErrorNotice("Error uploading payslip: "+noticeMessage(err)))
		}
		return
	}

	state.UpdateUploadForm(func(f *payroll.UploadForm) { f.Reset() })
	redirect(w, r, UploadsPath, model.SuccessNotice(MsgPayslipUploaded))
}

// readPayslip はアップロードされたファイルを読み込む。ファイルが未選択の場合はnilを返す。
// 上限サイズを1バイトでも超える場合は上限超過エラーとする。
func (h *PayrollHandler) readPayslip(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile(payslipField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, model.NewFileTooLargeError(h.service.MaxPayslipSize())
		}
		// ファイル未選択（multipartでない送信を含む）は検証エラーとしてサービスに任せる
		return nil, nil
	}
	defer file.Close()

	limit := h.service.MaxPayslipSize()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read payslip file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, model.NewFileTooLargeError(limit)
	}
	return data, nil
}

// --- レポート ---

type pageLink struct {
	Number  int
	URL     string
	Current bool
}

type reportsView struct {
	Query     string
	Page      payroll.Page
	PageLinks []pageLink
	PrevURL   string
	NextURL   string
}

// Reports は給与エントリを年月の降順で一覧表示する。
// 従業員名または年月で絞り込み、ページ番号は[1, 総ページ数]に丸める。
// GET /reports?q=&page=
func (h *PayrollHandler) Reports(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))

	entries, err := h.service.Report(r.Context())
	if err != nil {
		logFetchError(r, "レポートの取得に失敗しました", err)
		addNotice(r, model.ErrorNotice("Error fetching payroll records: "+noticeMessage(err)))
	}

	page := payroll.Paginate(payroll.FilterEntries(entries, query), pageNum, h.pageSize)

	links := make([]pageLink, 0, page.TotalPages)
	for n := 1; n <= page.TotalPages; n++ {
		links = append(links, pageLink{Number: n, URL: reportURL(query, n), Current: n == page.Number})
	}

	h.view.Render(w, r, http.StatusOK, pageReports, "Payroll Reports", reportsView{
		Query:     query,
		Page:      page,
		PageLinks: links,
		PrevURL:   reportURL(query, page.PrevNumber()),
		NextURL:   reportURL(query, page.NextNumber()),
	})
}

// reportURL はレポート画面のページ番号付きURLを返す。
func reportURL(query string, page int) string {
	v := url.Values{}
	if query != "" {
		v.Set("q", query)
	}
	v.Set("page", strconv.Itoa(page))
	return ReportsPath + "?" + v.Encode()
}

// logFetchError はリモート呼び出しの失敗をリクエスト情報付きで記録する。
func logFetchError(r *http.Request, msg string, err error) {
	slog.Error(msg,
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
}
