package payroll

import (
	"math"
	"strconv"
	"strings"

	"github.com/hitoshi/payrollpro/internal/model"
)

// AddInput は給与登録フォームの入力値。フォームの再表示にも使用する。
type AddInput struct {
	EmployeeID string
	Month      string
	Salary     string
}

// Validate は入力を型変換と必須項目の観点で検証し、エントリを組み立てる。
// IDと作成日時は設定しない。
func (in AddInput) Validate() (*model.PayrollEntry, error) {
	employeeID := strings.TrimSpace(in.EmployeeID)
	if employeeID == "" {
		return nil, model.NewEmployeeRequiredError()
	}

	month := strings.TrimSpace(in.Month)
	if !model.ValidMonth(month) {
		return nil, model.NewInvalidMonthError(month)
	}

	salary, err := ParseSalary(in.Salary)
	if err != nil {
		return nil, err
	}

	return &model.PayrollEntry{
		EmployeeID: employeeID,
		Month:      month,
		Salary:     salary,
	}, nil
}

// ParseSalary は給与額の文字列を数値に変換する。
// 有限な0以上model.MaxSalary以下の数値のみ受け付ける。
func ParseSalary(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, model.NewInvalidSalaryError()
	}
	if v < 0 {
		return 0, model.NewNegativeSalaryError()
	}
	if v > model.MaxSalary {
		return 0, model.NewSalaryTooLargeError()
	}
	return v, nil
}
