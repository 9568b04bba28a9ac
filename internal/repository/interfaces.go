// Package repository はデータ永続化のインターフェースと、その実装を提供する。
//
// 実装はSupabase互換のRESTエンドポイントを使うものと、同じテーブルにPostgreSQLで直接接続するものの2種類。
// どちらもリモートの行を非公開の行型で受け取り、境界で検証してから厳格なエンティティへ変換する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/payrollpro/internal/model"
)

// ErrPayslipAlreadyAttached は給与明細が添付済みのエントリ（または存在しないエントリ）に
// 添付しようとした場合のエラー。
var ErrPayslipAlreadyAttached = errors.New("payslip is already attached or the payroll entry does not exist")

// EmployeeRepository は従業員データの読み取りインターフェース。
type EmployeeRepository interface {
	// ListOrderedByName は全従業員を名前順で返す。
	ListOrderedByName(ctx context.Context) ([]model.Employee, error)
}

// PayrollRepository は給与エントリの永続化インターフェース。
type PayrollRepository interface {
	// Create は給与エントリを作成する。
	Create(ctx context.Context, entry *model.PayrollEntry) error

	// ListWithEmployee は全エントリを従業員の表示情報付きで年月の降順に返す。
	ListWithEmployee(ctx context.Context) ([]model.PayrollEntry, error)

	// ListWithoutPayslip は給与明細が未添付のエントリを従業員名付きで返す。
	ListWithoutPayslip(ctx context.Context) ([]model.PayrollEntry, error)

	// AttachPayslip はエントリに給与明細のURLを設定する。
	// 未添付のエントリにのみ設定でき、該当行がない場合はErrPayslipAlreadyAttachedを返す。
	AttachPayslip(ctx context.Context, entryID, payslipURL string) error
}

// BlobStore は給与明細ファイルの保存先インターフェース。
type BlobStore interface {
	// Upload はファイルを保存する。同名のファイルは上書きしない。
	Upload(ctx context.Context, name string, data []byte, contentType string) error

	// PublicURL は保存済みファイルの公開URLを返す。
	PublicURL(name string) string
}
