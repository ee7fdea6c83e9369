package output

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/studyhub/studyfeed/pkg/config"
)

func capture(t *testing.T, format string) *bytes.Buffer {
	t.Helper()
	if err := config.Init(filepath.Join(t.TempDir(), "config.toml")); err != nil {
		t.Fatal(err)
	}
	config.Set("output.format", format)

	var buf bytes.Buffer
	prev := Writer
	Writer = &buf
	t.Cleanup(func() { Writer = prev })
	return &buf
}

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		format string
		valid  bool
	}{
		{"json", true},
		{"table", true},
		{"text", true},
		{"yaml", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateOutputFormat(tt.format); got != tt.valid {
			t.Errorf("ValidateOutputFormat(%q) = %v", tt.format, got)
		}
	}
}

func TestPrintRecordJSON(t *testing.T) {
	buf := capture(t, "json")

	if err := PrintRecord("Profile", map[string]interface{}{"username": "@ana", "posts": 3}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `"username": "@ana"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestPrintRecordTextIsSorted(t *testing.T) {
	buf := capture(t, "text")

	_ = PrintRecord("", map[string]interface{}{"b": 2, "a": 1})

	out := buf.String()
	if strings.Index(out, "a: ") > strings.Index(out, "b: ") {
		t.Errorf("keys should print in order, got %q", out)
	}
}

func TestPrintTable(t *testing.T) {
	buf := capture(t, "table")

	PrintTable([]string{"ID", "TYPE"}, [][]string{{"d1", "quiz"}, {"d2", "text"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "quiz") {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestFormatAsJSON(t *testing.T) {
	s, err := FormatAsJSON(map[string]int{"likes": 3})
	if err != nil {
		t.Fatal(err)
	}
	if s != `{"likes":3}` {
		t.Errorf("FormatAsJSON = %s", s)
	}
}
