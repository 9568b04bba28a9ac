package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/repository"
)

// PayslipContentType は給与明細ファイルのContent-Type。
const PayslipContentType = "application/pdf"

// UploadForm は給与明細アップロード画面の選択状態。ブラウザごとに保持する。
type UploadForm struct {
	EmployeeID string
	EntryID    string
}

// SelectEmployee は従業員を選択する。選択済みのエントリは常にクリアする。
func (f *UploadForm) SelectEmployee(employeeID string) {
	f.EmployeeID = employeeID
	f.EntryID = ""
}

// SelectEntry はエントリを選択する。
func (f *UploadForm) SelectEntry(entryID string) {
	f.EntryID = entryID
}

// Reset は選択状態を初期化する。
func (f *UploadForm) Reset() {
	*f = UploadForm{}
}

// MonthOption はアップロード対象の年月の選択肢。
type MonthOption struct {
	EntryID string
	Month   string
	Label   string // 例: January 2024
}

// AvailableMonths は指定従業員の未添付エントリを選択肢として返す。
// 従業員が未選択の場合は空。
func AvailableMonths(open []model.PayrollEntry, employeeID string) []MonthOption {
	if employeeID == "" {
		return nil
	}

	var options []MonthOption
	for _, e := range open {
		if e.EmployeeID != employeeID || e.HasPayslip() {
			continue
		}
		options = append(options, MonthOption{
			EntryID: e.ID,
			Month:   e.Month,
			Label:   FormatMonth(e.Month),
		})
	}
	return options
}

// UploadInput は給与明細アップロードの入力値。
type UploadInput struct {
	EmployeeID string
	EntryID    string
	File       []byte // nilの場合はファイル未選択
}

// PayslipFileName は保存するファイル名を返す。
func PayslipFileName(employeeID string, unixMillis int64) string {
	return fmt.Sprintf("payslip_%s_%d.pdf", employeeID, unixMillis)
}

// UploadPayslip は給与明細ファイルを保存し、エントリに公開URLを設定する。
// 保存→公開URLの解決→エントリの更新の順に行い、いずれかが失敗した時点で中断する。
func (s *Service) UploadPayslip(ctx context.Context, in UploadInput) error {
	if len(in.File) == 0 || in.EntryID == "" {
		return model.NewUploadIncompleteError()
	}
	if int64(len(in.File)) > s.maxPayslipSize {
		return model.NewFileTooLargeError(s.maxPayslipSize)
	}
	if http.DetectContentType(in.File) != PayslipContentType {
		return model.NewNotPDFError()
	}

	open, err := s.OpenEntries(ctx)
	if err != nil {
		return err
	}
	if !selectable(open, in.EmployeeID, in.EntryID) {
		return model.NewEntryNotSelectableError()
	}

	name := PayslipFileName(in.EmployeeID, s.now().UnixMilli())
	if err := s.blobs.Upload(ctx, name, in.File, PayslipContentType); err != nil {
		return fmt.Errorf("failed to upload payslip: %w", err)
	}

	url := s.blobs.PublicURL(name)
	if err := s.payrolls.AttachPayslip(ctx, in.EntryID, url); err != nil {
		if errors.Is(err, repository.ErrPayslipAlreadyAttached) {
			slog.Warn("給与明細は既に添付されています",
				slog.String("payroll_id", in.EntryID),
				slog.String("file", name),
			)
		}
		return fmt.Errorf("failed to attach payslip: %w", err)
	}

	slog.Info("給与明細をアップロードしました",
		slog.String("payroll_id", in.EntryID),
		slog.String("employee_id", in.EmployeeID),
		slog.String("file", name),
	)
	return nil
}

// selectable はエントリが指定従業員の未添付エントリに含まれるかを判定する。
func selectable(open []model.PayrollEntry, employeeID, entryID string) bool {
	for _, o := range AvailableMonths(open, employeeID) {
		if o.EntryID == entryID {
			return true
		}
	}
	return false
}
