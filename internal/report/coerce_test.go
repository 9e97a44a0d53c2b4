package report_test

import (
	"testing"

	"trendsensei/internal/report"
)

func TestLeadingInt(t *testing.T) {
	cases := []struct {
		in   *string
		want int
		ok   bool
	}{
		{ptr("5"), 5, true},
		{ptr(" 42 "), 42, true},
		{ptr("4 stars"), 4, true},
		{ptr("4.5"), 4, true},
		{ptr(""), 0, false},
		{ptr("   "), 0, false},
		{ptr("five"), 0, false},
		{ptr("-1"), 0, false},
		{ptr("99999999999999999999999"), 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := report.LeadingInt(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("LeadingInt(%q) = %d,%v; want %d,%v", deref(c.in), got, ok, c.want, c.ok)
		}
	}
}

func TestMonth(t *testing.T) {
	cases := map[string]int{"3": 3, "03": 3, "12": 12, "March": 3, "mar": 3, "SEP": 9, "may": 5}
	for in, want := range cases {
		if got, ok := report.Month(ptr(in)); !ok || got != want {
			t.Errorf("Month(%q) = %d,%v; want %d", in, got, ok, want)
		}
	}
	for _, in := range []string{"0", "13", "smarch", ""} {
		if _, ok := report.Month(ptr(in)); ok {
			t.Errorf("Month(%q) should not coerce", in)
		}
	}
	if _, ok := report.Month(nil); ok {
		t.Errorf("Month(nil) should not coerce")
	}
}

func TestIsVerified(t *testing.T) {
	for _, s := range []string{"Y", "y", " yes ", "TRUE", "1"} {
		if !report.IsVerified(s) {
			t.Errorf("IsVerified(%q) = false", s)
		}
	}
	for _, s := range []string{"N", "", "no", "0", "maybe"} {
		if report.IsVerified(s) {
			t.Errorf("IsVerified(%q) = true", s)
		}
	}
}

func ptr[T any](v T) *T { return &v }

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}
