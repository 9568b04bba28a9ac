// Package model はドメインモデルを定義する。
package model

import "fmt"

// AppError は画面に通知として表示するエラーの統一フォーマットを表す。
// 原因カテゴリと対処方法を含む。
type AppError struct {
	Code     string // エラーコード
	Message  string // 利用者に表示するメッセージ
	Category string // カテゴリ: validation, remote, auth, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
// 通知にはMessageをそのまま表示するため、コードは含めない。
func (e *AppError) Error() string {
	return e.Message
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryRemote     = "remote"
	CategoryAuth       = "auth"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeEmployeeRequired   = "EMPLOYEE_REQUIRED"
	ErrCodeInvalidMonth       = "INVALID_MONTH"
	ErrCodeInvalidSalary      = "INVALID_SALARY"
	ErrCodeNegativeSalary     = "NEGATIVE_SALARY"
	ErrCodeSalaryTooLarge     = "SALARY_TOO_LARGE"
	ErrCodeUploadIncomplete   = "UPLOAD_INCOMPLETE"
	ErrCodeEntryNotSelectable = "ENTRY_NOT_SELECTABLE"
	ErrCodeNotPDF             = "NOT_PDF"
	ErrCodeFileTooLarge       = "FILE_TOO_LARGE"
	ErrCodeCredentialsMissing = "CREDENTIALS_MISSING"
	ErrCodePasswordTooShort   = "PASSWORD_TOO_SHORT"
)

// MinPasswordLength はサインアップ・サインイン時のパスワード最小長。
const MinPasswordLength = 6

// NewEmployeeRequiredError は従業員未選択エラーを生成する。
func NewEmployeeRequiredError() *AppError {
	return &AppError{
		Code:     ErrCodeEmployeeRequired,
		Message:  "Please select an employee",
		Category: CategoryValidation,
		Action:   "Choose an employee from the list.",
	}
}

// NewInvalidMonthError は年月の形式エラーを生成する。
func NewInvalidMonthError(month string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidMonth,
		Message:  fmt.Sprintf("Month must be in YYYY-MM format: %q", month),
		Category: CategoryValidation,
		Action:   "Pick a month using the month selector.",
	}
}

// NewInvalidSalaryError は給与額が数値として解釈できない場合のエラーを生成する。
func NewInvalidSalaryError() *AppError {
	return &AppError{
		Code:     ErrCodeInvalidSalary,
		Message:  "Salary must be a valid number",
		Category: CategoryValidation,
		Action:   "Enter the amount using digits, for example 1234.50.",
	}
}

// NewNegativeSalaryError は給与額が負の場合のエラーを生成する。
func NewNegativeSalaryError() *AppError {
	return &AppError{
		Code:     ErrCodeNegativeSalary,
		Message:  "Salary must not be negative",
		Category: CategoryValidation,
		Action:   "Enter an amount of zero or more.",
	}
}

// NewSalaryTooLargeError は給与額が保存可能な上限を超える場合のエラーを生成する。
func NewSalaryTooLargeError() *AppError {
	return &AppError{
		Code:     ErrCodeSalaryTooLarge,
		Message:  "Salary must not exceed 9,999,999,999.99",
		Category: CategoryValidation,
		Action:   "Enter a smaller amount.",
	}
}

// NewUploadIncompleteError はファイルまたは給与エントリが未選択の場合のエラーを生成する。
func NewUploadIncompleteError() *AppError {
	return &AppError{
		Code:     ErrCodeUploadIncomplete,
		Message:  "Please select a file and payroll entry",
		Category: CategoryValidation,
		Action:   "Select an employee, a payroll month and a PDF file.",
	}
}

// NewEntryNotSelectableError は選択できない給与エントリが指定された場合のエラーを生成する。
// 他の従業員のエントリや、既に給与明細が添付済みのエントリが該当する。
func NewEntryNotSelectableError() *AppError {
	return &AppError{
		Code:     ErrCodeEntryNotSelectable,
		Message:  "The selected payroll entry is not available for upload",
		Category: CategoryValidation,
		Action:   "Pick one of the months offered for the selected employee.",
	}
}

// NewNotPDFError はアップロードファイルがPDFでない場合のエラーを生成する。
func NewNotPDFError() *AppError {
	return &AppError{
		Code:     ErrCodeNotPDF,
		Message:  "Payslip must be a PDF file",
		Category: CategoryValidation,
		Action:   "Export the payslip as PDF and try again.",
	}
}

// NewFileTooLargeError はアップロードファイルが上限サイズを超える場合のエラーを生成する。
func NewFileTooLargeError(limit int64) *AppError {
	return &AppError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("Payslip must be at most %d KB", limit/1024),
		Category: CategoryValidation,
		Action:   "Compress the PDF and try again.",
	}
}

// NewCredentialsMissingError はメールアドレスまたはパスワードが空の場合のエラーを生成する。
func NewCredentialsMissingError() *AppError {
	return &AppError{
		Code:     ErrCodeCredentialsMissing,
		Message:  "Email and password are required",
		Category: CategoryValidation,
		Action:   "Fill in both fields.",
	}
}

// NewPasswordTooShortError はパスワードが最小長に満たない場合のエラーを生成する。
func NewPasswordTooShortError() *AppError {
	return &AppError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
		Category: CategoryValidation,
		Action:   "Choose a longer password.",
	}
}
