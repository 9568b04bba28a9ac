// Package payroll は給与レコード画面（ダッシュボード・給与登録・給与明細アップロード・レポート）の
// 業務ロジックを提供する。
//
// 各操作は毎回リモートから取得し直す。絞り込み・並べ替え・ページ分割はローカルで行い、
// 変更操作のあとは全件を再取得する。
package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/repository"
)

// DefaultMaxPayslipSize は給与明細ファイルのデフォルト上限サイズ（10MB）。
const DefaultMaxPayslipSize int64 = 10 << 20

// Config はServiceの設定。
type Config struct {
	MaxPayslipSize int64 // 0以下の場合はDefaultMaxPayslipSize
}

// Service は給与レコードの業務ロジック。
type Service struct {
	employees repository.EmployeeRepository
	payrolls  repository.PayrollRepository
	blobs     repository.BlobStore

	maxPayslipSize int64
	now            func() time.Time
	newID          func() string
}

// NewService はServiceを生成する。
func NewService(
	employees repository.EmployeeRepository,
	payrolls repository.PayrollRepository,
	blobs repository.BlobStore,
	config Config,
) *Service {
	maxSize := config.MaxPayslipSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPayslipSize
	}
	return &Service{
		employees:      employees,
		payrolls:       payrolls,
		blobs:          blobs,
		maxPayslipSize: maxSize,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// Now は現在時刻を返す。フォームの初期値（当月）に使用する。
func (s *Service) Now() time.Time {
	return s.now()
}

// MaxPayslipSize は給与明細ファイルの上限サイズを返す。
func (s *Service) MaxPayslipSize() int64 {
	return s.maxPayslipSize
}

// Employees は従業員一覧を名前順で返す。
func (s *Service) Employees(ctx context.Context) ([]model.Employee, error) {
	employees, err := s.employees.ListOrderedByName(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// Report はレポート用に全エントリを年月の降順で返す。
func (s *Service) Report(ctx context.Context) ([]model.PayrollEntry, error) {
	entries, err := s.payrolls.ListWithEmployee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll entries: %w", err)
	}
	return entries, nil
}

// OpenEntries は給与明細が未添付のエントリを返す。
func (s *Service) OpenEntries(ctx context.Context) ([]model.PayrollEntry, error) {
	entries, err := s.payrolls.ListWithoutPayslip(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open payroll entries: %w", err)
	}
	return entries, nil
}

// AddEntry は入力を検証し、給与エントリを作成する。
// 検証エラーの場合はリモート呼び出しを行わず*model.AppErrorを返す。
func (s *Service) AddEntry(ctx context.Context, in AddInput) (*model.PayrollEntry, error) {
	entry, err := in.Validate()
	if err != nil {
		return nil, err
	}
	entry.ID = s.newID()
	entry.CreatedAt = s.now().UTC()

	if err := s.payrolls.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create payroll entry: %w", err)
	}

	slog.Info("給与エントリを登録しました",
		slog.String("payroll_id", entry.ID),
		slog.String("employee_id", entry.EmployeeID),
		slog.String("month", entry.Month),
	)
	return entry, nil
}
