package ui

import (
	"strings"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	tests := []struct {
		n    int
		noun string
		want string
	}{
		{0, "task", "0 tasks"},
		{1, "task", "1 task"},
		{1234, "project", "1,234 projects"},
	}
	for _, tt := range tests {
		if got := Count(tt.n, tt.noun); got != tt.want {
			t.Errorf("Count(%d, %q) = %q, want %q", tt.n, tt.noun, got, tt.want)
		}
	}
}

func TestAgo(t *testing.T) {
	if got := Ago(nil); got != "never" {
		t.Errorf("Ago(nil) = %q, want never", got)
	}
	past := time.Now().Add(-3 * time.Hour)
	if got := Ago(&past); !strings.Contains(got, "ago") {
		t.Errorf("Ago(3h ago) = %q", got)
	}
}

func TestTable(t *testing.T) {
	DisableColor()

	out := Table([]string{"ID", "TITLE"}, [][]string{
		{"1", "Short"},
		{"12345", "Longer title"},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	if lines[1] != "1      Short" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "12345  Longer title" {
		t.Errorf("row 2 = %q", lines[2])
	}
}
