package booking

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/turnover/internal/dates"
)

func TestNewValidatesInterval(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		wantErr    string
	}{
		{"one night", dates.Day(2024, 9, 1), dates.Day(2024, 9, 2), ""},
		{"same day", dates.Day(2024, 9, 1), dates.Day(2024, 9, 1), "at least one day"},
		{"inverted", dates.Day(2024, 9, 3), dates.Day(2024, 9, 1), "cannot come after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.start, tt.end, nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if b.ID == "" {
					t.Error("expected generated ID")
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewTruncatesClock(t *testing.T) {
	start := time.Date(2024, 9, 1, 16, 0, 0, 0, time.UTC)
	end := time.Date(2024, 9, 3, 10, 0, 0, 0, time.UTC)
	deadline := time.Date(2024, 9, 6, 12, 0, 0, 0, time.UTC)

	b, err := New(start, end, &deadline)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !b.StartDate.Equal(dates.Day(2024, 9, 1)) {
		t.Errorf("start = %v", b.StartDate)
	}
	if !b.CleaningDeadline.Equal(dates.Day(2024, 9, 6)) {
		t.Errorf("deadline = %v", b.CleaningDeadline)
	}
}

func TestVacancyWindow(t *testing.T) {
	deadline := dates.Day(2024, 9, 6)
	withDeadline := &Booking{StartDate: dates.Day(2024, 9, 1), EndDate: dates.Day(2024, 9, 3), CleaningDeadline: &deadline}
	without := &Booking{StartDate: dates.Day(2024, 9, 1), EndDate: dates.Day(2024, 9, 3)}

	start, end := withDeadline.VacancyWindow()
	if !start.Equal(dates.Day(2024, 9, 3)) || !end.Equal(deadline) {
		t.Errorf("window = %v..%v, want 9/3..9/6", start, end)
	}

	start, end = without.VacancyWindow()
	if !start.Equal(dates.Day(2024, 9, 3)) || !end.Equal(dates.Day(2024, 9, 3)) {
		t.Errorf("window = %v..%v, want 9/3..9/3", start, end)
	}
}

func TestCleanableOn(t *testing.T) {
	deadline := dates.Day(2024, 9, 6)
	bounded := &Booking{StartDate: dates.Day(2024, 9, 1), EndDate: dates.Day(2024, 9, 3), CleaningDeadline: &deadline}
	unbounded := &Booking{StartDate: dates.Day(2024, 9, 1), EndDate: dates.Day(2024, 9, 3)}

	tests := []struct {
		day       time.Time
		bounded   bool
		unbounded bool
	}{
		{dates.Day(2024, 9, 2), false, false},
		{dates.Day(2024, 9, 3), true, true},
		{dates.Day(2024, 9, 6), true, true},
		{dates.Day(2024, 9, 7), false, true},
		{dates.Day(2025, 1, 1), false, true},
	}

	for _, tt := range tests {
		t.Run(dates.Format(tt.day), func(t *testing.T) {
			if got := bounded.CleanableOn(tt.day); got != tt.bounded {
				t.Errorf("bounded.CleanableOn = %v, want %v", got, tt.bounded)
			}
			if got := unbounded.CleanableOn(tt.day); got != tt.unbounded {
				t.Errorf("unbounded.CleanableOn = %v, want %v", got, tt.unbounded)
			}
		})
	}
}

func TestHorizon(t *testing.T) {
	b := &Booking{StartDate: dates.Day(2024, 9, 1), EndDate: dates.Day(2024, 9, 3)}
	if got := b.Horizon(); !got.Equal(dates.Day(2024, 9, 3)) {
		t.Errorf("horizon without cleaning = %v, want checkout", got)
	}

	b.SetCleaningDate(dates.Day(2024, 9, 6))
	if got := b.Horizon(); !got.Equal(dates.Day(2024, 9, 6)) {
		t.Errorf("horizon with cleaning = %v, want cleaning day", got)
	}

	deadline := dates.Day(2024, 9, 10)
	b.CleaningDeadline = &deadline
	if got := b.Horizon(); !got.Equal(deadline) {
		t.Errorf("horizon with deadline = %v, want deadline", got)
	}
}
