package transfer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jos-todo/todosync/internal/canonical"
	"github.com/jos-todo/todosync/internal/model"
)

func sample() model.Document {
	due := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	pid := model.ID("7")
	start := "2026-02-01"
	return model.Document{
		Tasks: []model.Task{
			{ID: "1", Title: "Call Ana", Priority: model.PriorityHigh, DueDate: &due, ProjectID: &pid},
			{ID: "2", Title: "Archive", Priority: model.PriorityNone, Completed: true},
		},
		Projects: []model.Project{
			{ID: "7", Title: "Launch", Status: model.StatusInProgress, StartDate: &start, SortOrder: 1000},
		},
	}
}

func TestExportDecode_BothFormats(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Export(sample(), format, now)
			if err != nil {
				t.Fatalf("Export() failed: %v", err)
			}
			if !strings.Contains(string(data), "2026-10-19T12:00:00.000Z") {
				t.Errorf("export date missing from output:\n%s", data)
			}

			got, err := Decode(data, format)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			want := sample()
			want.Normalize()
			if !canonical.DocumentsEqual(got, want) {
				t.Errorf("decoded document differs:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestDecode_RejectsMissingArrays(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"json missing projects", `{"tasks": []}`, FormatJSON},
		{"json tasks not array", `{"tasks": {}, "projects": []}`, FormatJSON},
		{"yaml missing tasks", "projects: []\n", FormatYAML},
		{"yaml scalar", "hello\n", FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data), tt.format); !errors.Is(err, model.ErrInvalidPayload) {
				t.Errorf("Decode() error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}
