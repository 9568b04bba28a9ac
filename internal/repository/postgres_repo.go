package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/payrollpro/internal/model"
	"github.com/hitoshi/payrollpro/internal/security"
)

// Querier はSQLの問い合わせを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresEmployeeRepo はPostgreSQLに直接接続する従業員リポジトリ。
// BaaSが公開しているものと同じemployeesテーブルを読む。
type PostgresEmployeeRepo struct {
	db     Querier
	coerce coercer
}

// NewPostgresEmployeeRepo はPostgresEmployeeRepoを生成する。
func NewPostgresEmployeeRepo(db Querier, sanitizer security.TextSanitizer) *PostgresEmployeeRepo {
	return &PostgresEmployeeRepo{db: db, coerce: newCoercer(sanitizer)}
}

// ListOrderedByName は全従業員を名前順で返す。
func (r *PostgresEmployeeRepo) ListOrderedByName(ctx context.Context) ([]model.Employee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, designation, created_at
		 FROM employees
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var raw []employeeRow
	for rows.Next() {
		var (
			row         employeeRow
			email       sql.NullString
			designation sql.NullString
			createdAt   sql.NullTime
		)
		if err := rows.Scan(&row.ID, &row.Name, &email, &designation, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		row.Email = email.String
		row.Designation = designation.String
		row.CreatedAt = formatTimestamp(createdAt)
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return r.coerce.employees(raw), nil
}

// PostgresPayrollRepo はPostgreSQLに直接接続する給与エントリリポジトリ。
type PostgresPayrollRepo struct {
	db     Querier
	coerce coercer
}

// NewPostgresPayrollRepo はPostgresPayrollRepoを生成する。
func NewPostgresPayrollRepo(db Querier, sanitizer security.TextSanitizer) *PostgresPayrollRepo {
	return &PostgresPayrollRepo{db: db, coerce: newCoercer(sanitizer)}
}

// Create は給与エントリを作成する。payslip_urlはNULLで作成する。
func (r *PostgresPayrollRepo) Create(ctx context.Context, entry *model.PayrollEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payrolls (id, employee_id, month, salary, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.EmployeeID, entry.Month, entry.Salary, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payroll: %w", err)
	}
	return nil
}

// payrollSelect は従業員を結合した給与エントリの取得列。
const payrollSelect = `SELECT p.id, p.employee_id, p.month, p.salary, p.payslip_url, p.created_at, e.name, e.email
	 FROM payrolls p
	 LEFT JOIN employees e ON e.id = p.employee_id`

// ListWithEmployee は全エントリを従業員の表示情報付きで年月の降順に返す。
func (r *PostgresPayrollRepo) ListWithEmployee(ctx context.Context) ([]model.PayrollEntry, error) {
	return r.list(ctx, payrollSelect+` ORDER BY p.month DESC, p.created_at DESC`)
}

// ListWithoutPayslip は給与明細が未添付のエントリを従業員名付きで返す。
func (r *PostgresPayrollRepo) ListWithoutPayslip(ctx context.Context) ([]model.PayrollEntry, error) {
	return r.list(ctx, payrollSelect+` WHERE p.payslip_url IS NULL ORDER BY p.month`)
}

func (r *PostgresPayrollRepo) list(ctx context.Context, query string) ([]model.PayrollEntry, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list payrolls: %w", err)
	}
	defer rows.Close()

	var raw []payrollRow
	for rows.Next() {
		var (
			row        payrollRow
			salary     sql.NullFloat64
			payslipURL sql.NullString
			createdAt  sql.NullTime
			name       sql.NullString
			email      sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.EmployeeID, &row.Month, &salary, &payslipURL, &createdAt, &name, &email); err != nil {
			return nil, fmt.Errorf("failed to scan payroll: %w", err)
		}
		if salary.Valid {
			v := salary.Float64
			row.Salary = &v
		}
		if payslipURL.Valid {
			v := payslipURL.String
			row.PayslipURL = &v
		}
		row.CreatedAt = formatTimestamp(createdAt)
		if name.Valid {
			row.Employee = &employeeRefRow{Name: name.String, Email: email.String}
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payrolls: %w", err)
	}

	return r.coerce.payrolls(raw), nil
}

// AttachPayslip はpayslip_urlが未設定のエントリにのみURLを設定する。
func (r *PostgresPayrollRepo) AttachPayslip(ctx context.Context, entryID, payslipURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payrolls SET payslip_url = $2 WHERE id = $1 AND payslip_url IS NULL`,
		entryID, payslipURL,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrPayslipAlreadyAttached
	}
	return nil
}

// formatTimestamp はNULL許容のタイムスタンプを行型の文字列表現に変換する。
func formatTimestamp(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(time.RFC3339Nano)
}

// compile-time interface checks
var (
	_ EmployeeRepository = (*PostgresEmployeeRepo)(nil)
	_ PayrollRepository  = (*PostgresPayrollRepo)(nil)
)
