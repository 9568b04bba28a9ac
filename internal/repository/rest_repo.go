package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/security"
	"github.com/hitoshi/payrollpro/internal/supabase"
)

// テーブル名
const (
	employeesTable = "employees"
	payrollsTable  = "payrolls"
)

// RestEmployeeRepo はPostgREST互換エンドポイントを使用した従業員リポジトリ。
type RestEmployeeRepo struct {
	rest   *supabase.RestClient
	coerce coercer
}

// NewRestEmployeeRepo はRestEmployeeRepoを生成する。
func NewRestEmployeeRepo(rest *supabase.RestClient, sanitizer security.TextSanitizer) *RestEmployeeRepo {
	return &RestEmployeeRepo{rest: rest, coerce: newCoercer(sanitizer)}
}

// ListOrderedByName は全従業員を名前順で返す。
func (r *RestEmployeeRepo) ListOrderedByName(ctx context.Context) ([]model.Employee, error) {
	var rows []employeeRow
	err := r.rest.Select(ctx, employeesTable, supabase.Query{
		Order: []supabase.Order{{Column: "name", Ascending: true}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to select employees: %w", err)
	}
	return r.coerce.employees(rows), nil
}

// RestPayrollRepo はPostgREST互換エンドポイントを使用した給与エントリリポジトリ。
type RestPayrollRepo struct {
	rest   *supabase.RestClient
	coerce coercer
}

// NewRestPayrollRepo はRestPayrollRepoを生成する。
func NewRestPayrollRepo(rest *supabase.RestClient, sanitizer security.TextSanitizer) *RestPayrollRepo {
	return &RestPayrollRepo{rest: rest, coerce: newCoercer(sanitizer)}
}

// payrollInsert は給与エントリ作成時のリクエスト行。payslip_urlは送らない。
type payrollInsert struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	Month      string  `json:"month"`
	Salary     float64 `json:"salary"`
}

// Create は給与エントリを作成する。
func (r *RestPayrollRepo) Create(ctx context.Context, entry *model.PayrollEntry) error {
	err := r.rest.Insert(ctx, payrollsTable, payrollInsert{
		ID:         entry.ID,
		EmployeeID: entry.EmployeeID,
		Month:      entry.Month,
		Salary:     entry.Salary,
	})
	if err != nil {
		return fmt.Errorf("failed to insert payroll: %w", err)
	}
	return nil
}

// ListWithEmployee は全エントリを従業員の表示情報付きで年月の降順に返す。
func (r *RestPayrollRepo) ListWithEmployee(ctx context.Context) ([]model.PayrollEntry, error) {
	var rows []payrollRow
	err := r.rest.Select(ctx, payrollsTable, supabase.Query{
		Select: "*, employee:employees(name, email)",
		Order:  []supabase.Order{{Column: "month", Ascending: false}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to select payrolls: %w", err)
	}
	return r.coerce.payrolls(rows), nil
}

// ListWithoutPayslip は給与明細が未添付のエントリを従業員名付きで返す。
func (r *RestPayrollRepo) ListWithoutPayslip(ctx context.Context) ([]model.PayrollEntry, error) {
	var rows []payrollRow
	err := r.rest.Select(ctx, payrollsTable, supabase.Query{
		Select:  "*, employee:employees(name)",
		Filters: []supabase.Filter{supabase.IsNull("payslip_url")},
		Order:   []supabase.Order{{Column: "month", Ascending: true}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to select open payrolls: %w", err)
	}
	return r.coerce.payrolls(rows), nil
}

// AttachPayslip はpayslip_urlが未設定のエントリにのみURLを設定する。
func (r *RestPayrollRepo) AttachPayslip(ctx context.Context, entryID, payslipURL string) error {
	n, err := r.rest.Update(ctx, payrollsTable,
		[]supabase.Filter{supabase.Eq("id", entryID), supabase.IsNull("payslip_url")},
		map[string]string{"payslip_url": payslipURL},
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll: %w", err)
	}
	if n == 0 {
		return ErrPayslipAlreadyAttached
	}
	return nil
}

// StorageBlobStore はStorage互換エンドポイントの公開バケットに給与明細を保存する。
type StorageBlobStore struct {
	storage *supabase.StorageClient
	bucket  string
}

// payslipCacheControl は保存ファイルのキャッシュ秒数。
const payslipCacheControl = "3600"

// NewStorageBlobStore はStorageBlobStoreを生成する。
func NewStorageBlobStore(storage *supabase.StorageClient, bucket string) *StorageBlobStore {
	return &StorageBlobStore{storage: storage, bucket: bucket}
}

// Upload はファイルをバケットに保存する。
func (s *StorageBlobStore) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.storage.Upload(ctx, s.bucket, name, data, supabase.UploadOptions{
		ContentType:  contentType,
		CacheControl: payslipCacheControl,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// PublicURL は保存済みファイルの公開URLを返す。
func (s *StorageBlobStore) PublicURL(name string) string {
	return s.storage.PublicURL(s.bucket, name)
}

// compile-time interface checks
var (
	_ EmployeeRepository = (*RestEmployeeRepo)(nil)
	_ PayrollRepository  = (*RestPayrollRepo)(nil)
	_ BlobStore          = (*StorageBlobStore)(nil)
)
