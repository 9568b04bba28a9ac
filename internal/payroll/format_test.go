package payroll

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/payrollpro/internal/model"
)

func TestFormatSalary(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.5, "$1,234.50"},
		{0, "$0.00"},
		{5, "$5.00"},
		{999.999, "$1,000.00"},
		{1234567.891, "$1,234,567.89"},
		{100000, "$100,000.00"},
		{0.05, "$0.05"},
		{-42.1, "-$42.10"},
		{-0.001, "$0.00"},
		{9999999999.99, "$9,999,999,999.99"},
		{1e19, "$10,000,000,000,000,000,000.00"},
		{math.Inf(1), "$0.00"},
		{math.NaN(), "$0.00"},
	}

	for _, tt := range tests {
		if got := FormatSalary(tt.in); got != tt.want {
			t.Errorf("FormatSalary(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMonth(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01", "January 2024"},
		{"2023-12", "December 2023"},
		{"bogus", "bogus"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatMonth(tt.in); got != tt.want {
			t.Errorf("FormatMonth(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCurrentMonth(t *testing.T) {
	now := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	if got := CurrentMonth(now); got != "2024-03" {
		t.Errorf("CurrentMonth() = %q, want 2024-03", got)
	}
}

func TestFormatSalary_HugeValuesStayWellFormed(t *testing.T) {
	got := FormatSalary(1e300)
	if !strings.HasPrefix(got, "$1,000,") || !strings.HasSuffix(got, ".00") {
		t.Errorf("FormatSalary(1e300) = %q, want $1,000,...00", got)
	}
	if strings.Contains(got, "-") {
		t.Errorf("FormatSalary(1e300) = %q, should not contain a sign", got)
	}
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		raw      string
		want     float64
		wantCode string
	}{
		{"1234.50", 1234.5, ""},
		{" 0 ", 0, ""},
		{"9999999999.99", 9999999999.99, ""},
		{"10000000000", 0, model.ErrCodeSalaryTooLarge},
		{"1e19", 0, model.ErrCodeSalaryTooLarge},
		{"-1", 0, model.ErrCodeNegativeSalary},
		{"abc", 0, model.ErrCodeInvalidSalary},
		{"Inf", 0, model.ErrCodeInvalidSalary},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSalary(tt.raw)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("ParseSalary(%q) error: %v", tt.raw, err)
				}
				if got != tt.want {
					t.Errorf("ParseSalary(%q) = %v, want %v", tt.raw, got, tt.want)
				}
				return
			}
			if code := appErrorCode(t, err); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}
