package report

import (
	"testing"
	"time"
)

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2025-12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !start.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %s - %s", start, end)
	}
	if _, _, err := MonthRange("12/2025"); err == nil {
		t.Fatalf("expected error for bad month")
	}
}
