package cli

import (
	"testing"
)

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"serve extra", []string{"serve", "extra"}},
		{"user add no name", []string{"user", "add"}},
		{"user remove no name", []string{"user", "remove"}},
		{"import nothing", []string{"import"}},
		{"import file and url", []string{"import", "apartment_1.ics", "--url", "http://example.com/apartment_1.ics"}},
		{"import two files", []string{"import", "a.ics", "b.ics"}},
		{"export no number", []string{"export"}},
		{"export non-numeric", []string{"export", "abc"}},
		{"export negative", []string{"export", "--", "-1"}},
		{"schedule bad from", []string{"schedule", "--from", "tomorrow"}},
		{"schedule bad to", []string{"schedule", "--to", "2024-13-01"}},
		{"subscription add no url", []string{"subscription", "add"}},
		{"subscription sync no id", []string{"sub", "sync"}},
		{"login extra", []string{"login", "extra"}},
		{"email no recipients", []string{"email"}},
		{"email bad from", []string{"email", "--dry-run", "--from", "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv("TURNOVER_SERVER_URL", "http://127.0.0.1:1")
			_, err := executeCommand(tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
