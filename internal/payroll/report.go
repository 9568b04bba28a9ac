package payroll

import (
	"fmt"
	"strings"

	"github.com/hitoshi/payrollpro/internal/model"
)

// DefaultPageSize はレポートの1ページあたりの件数。
const DefaultPageSize = 10

// FilterEntries は従業員名または年月キーに大文字小文字を区別せず部分一致するエントリを返す。
// クエリが空の場合は全件を返す。
func FilterEntries(entries []model.PayrollEntry, query string) []model.PayrollEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}

	filtered := make([]model.PayrollEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.EmployeeName()), q) ||
			strings.Contains(strings.ToLower(e.Month), q) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Page はページ分割の結果。
type Page struct {
	Items      []model.PayrollEntry
	Number     int // 1始まり
	TotalPages int
	Total      int
	Start      int // 表示中の先頭の通し番号（1始まり）。0件の場合は0
	End        int
}

// HasPrev は前のページがあるかを返す。
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext は次のページがあるかを返す。
func (p Page) HasNext() bool { return p.Number < p.TotalPages }

// PrevNumber は前のページ番号を返す。
func (p Page) PrevNumber() int { return p.Number - 1 }

// NextNumber は次のページ番号を返す。
func (p Page) NextNumber() int { return p.Number + 1 }

// Summary は「Showing a to b of n results」形式の表示文言を返す。
func (p Page) Summary() string {
	return fmt.Sprintf("Showing %d to %d of %d results", p.Start, p.End, p.Total)
}

// Paginate はエントリをページに分割する。ページ番号は[1, TotalPages]に丸める。
// sizeが0以下の場合はDefaultPageSizeを使用する。
func Paginate(entries []model.PayrollEntry, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}

	total := len(entries)
	totalPages := (total + size - 1) / size
	if totalPages == 0 {
		return Page{Number: 1, TotalPages: 0, Total: 0}
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * size
	end := min(start+size, total)

	return Page{
		Items:      entries[start:end],
		Number:     page,
		TotalPages: totalPages,
		Total:      total,
		Start:      start + 1,
		End:        end,
	}
}
