package model

import (
	"regexp"
	"time"
)

// MaxSalary は保存可能な給与額の上限。salary列のNUMERIC(12, 2)に合わせる。
const MaxSalary = 9999999999.99

// monthPattern は年月キー（YYYY-MM）の形式。
var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// PayrollEntry は従業員ごと・月ごとの給与エントリを表す。
// PayslipURLはアップロードフローでのみ一度だけ設定され、クリアされることはない。
type PayrollEntry struct {
	ID         string
	EmployeeID string
	Month      string  // YYYY-MM
	Salary     float64 // 0以上MaxSalary以下
	PayslipURL string  // 未添付の場合は空文字
	CreatedAt  time.Time

	// Employee は表示用の結合結果。結合していない場合はnil。
	Employee *EmployeeRef
}

// HasPayslip は給与明細が添付済みかどうかを返す。
func (e PayrollEntry) HasPayslip() bool {
	return e.PayslipURL != ""
}

// EmployeeName は結合済みの従業員名を返す。未結合の場合は空文字を返す。
func (e PayrollEntry) EmployeeName() string {
	if e.Employee == nil {
		return ""
	}
	return e.Employee.Name
}

// ValidMonth は年月キーがYYYY-MM形式かどうかを判定する。
func ValidMonth(month string) bool {
	return monthPattern.MatchString(month)
}
