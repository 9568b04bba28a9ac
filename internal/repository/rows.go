package repository

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/security"
)

// employeeRow はリモートから受け取る従業員の行。
type employeeRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Designation string `json:"designation"`
	CreatedAt   string `json:"created_at"`
}

// employeeRefRow は給与エントリに結合された従業員の行。
type employeeRefRow struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// payrollRow はリモートから受け取る給与エントリの行。
type payrollRow struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employee_id"`
	Month      string          `json:"month"`
	Salary     *float64        `json:"salary"`
	PayslipURL *string         `json:"payslip_url"`
	CreatedAt  string          `json:"created_at"`
	Employee   *employeeRefRow `json:"employee"`
}

// timestampLayouts はcreated_atとして受け付ける書式。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

// parseTimestamp はタイムスタンプ文字列を解釈する。解釈できない場合はゼロ値を返す。
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// coercer はリモートの行を検証し、厳格なエンティティへ変換する。
// 不正な行は警告ログを出して破棄する。
type coercer struct {
	sanitizer security.TextSanitizer
}

func newCoercer(sanitizer security.TextSanitizer) coercer {
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	return coercer{sanitizer: sanitizer}
}

// employee は従業員の行を変換する。IDが空の行は破棄する。
func (c coercer) employee(r employeeRow) (model.Employee, bool) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		dropRow("employees", r.ID, "empty id")
		return model.Employee{}, false
	}
	return model.Employee{
		ID:          id,
		Name:        c.sanitizer.Sanitize(r.Name),
		Email:       c.sanitizer.Sanitize(r.Email),
		Designation: c.sanitizer.Sanitize(r.Designation),
		CreatedAt:   parseTimestamp(r.CreatedAt),
	}, true
}

// employees は従業員の行をまとめて変換する。
func (c coercer) employees(rows []employeeRow) []model.Employee {
	out := make([]model.Employee, 0, len(rows))
	for _, r := range rows {
		if e, ok := c.employee(r); ok {
			out = append(out, e)
		}
	}
	return out
}

// payroll は給与エントリの行を変換する。
// ID・従業員IDが空、年月がYYYY-MM形式でない、給与額が欠落・負・非有限の行は破棄する。
func (c coercer) payroll(r payrollRow) (model.PayrollEntry, bool) {
	id := strings.TrimSpace(r.ID)
	employeeID := strings.TrimSpace(r.EmployeeID)

	switch {
	case id == "":
		dropRow("payrolls", r.ID, "empty id")
		return model.PayrollEntry{}, false
	case employeeID == "":
		dropRow("payrolls", id, "empty employee_id")
		return model.PayrollEntry{}, false
	case !model.ValidMonth(r.Month):
		dropRow("payrolls", id, "invalid month")
		return model.PayrollEntry{}, false
	case r.Salary == nil || math.IsNaN(*r.Salary) || math.IsInf(*r.Salary, 0) || *r.Salary < 0:
		dropRow("payrolls", id, "invalid salary")
		return model.PayrollEntry{}, false
	}

	entry := model.PayrollEntry{
		ID:         id,
		EmployeeID: employeeID,
		Month:      r.Month,
		Salary:     *r.Salary,
		CreatedAt:  parseTimestamp(r.CreatedAt),
	}
	// 表示時のリンク検証はsecurity.SafeLinkで行う。ここでは添付済みかどうかを保つため値を残す
	if r.PayslipURL != nil {
		entry.PayslipURL = strings.TrimSpace(*r.PayslipURL)
	}
	if r.Employee != nil {
		entry.Employee = &model.EmployeeRef{
			Name:  c.sanitizer.Sanitize(r.Employee.Name),
			Email: c.sanitizer.Sanitize(r.Employee.Email),
		}
	}
	return entry, true
}

// payrolls は給与エントリの行をまとめて変換する。
func (c coercer) payrolls(rows []payrollRow) []model.PayrollEntry {
	out := make([]model.PayrollEntry, 0, len(rows))
	for _, r := range rows {
		if e, ok := c.payroll(r); ok {
			out = append(out, e)
		}
	}
	return out
}

func dropRow(table, id, reason string) {
	slog.Warn("不正なリモートの行を破棄しました",
		slog.String("table", table),
		slog.String("id", id),
		slog.String("reason", reason),
	)
}
