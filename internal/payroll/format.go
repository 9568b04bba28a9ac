package payroll

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// monthLayout は年月キーのレイアウト。
const monthLayout = "2006-01"

// FormatSalary は給与額をUSD表記（例: $1,234.50）に整形する。
// 桁数に上限はなく、非有限値は"$0.00"とする。
func FormatSalary(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "$0.00"
	}

	digits := strconv.FormatFloat(math.Abs(amount), 'f', 2, 64)
	whole, frac, _ := strings.Cut(digits, ".")

	var b strings.Builder
	if amount < 0 && strings.Trim(digits, "0.") != "" {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// FormatMonth は年月キーを英語の月名表記（例: January 2024）に整形する。
// 解釈できない場合は入力をそのまま返す。
func FormatMonth(month string) string {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return month
	}
	return t.Format("January 2006")
}

// CurrentMonth は指定時刻の年月キーを返す。
func CurrentMonth(now time.Time) string {
	return now.Format(monthLayout)
}
