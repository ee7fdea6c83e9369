package prompter

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		input   string
		n       int
		want    int
		wantErr bool
	}{
		{"1", 3, 0, false},
		{" 3 ", 3, 2, false},
		{"0", 3, -1, true},
		{"4", 3, -1, true},
		{"abc", 3, -1, true},
	}
	for _, tt := range tests {
		got, err := parseSelection(tt.input, tt.n)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseSelection(%q) = %d, %v", tt.input, got, err)
		}
	}
}

func TestPromptConfirm(t *testing.T) {
	var out bytes.Buffer
	SetIO(strings.NewReader("yes\nn\n"), &out)

	ok, err := PromptConfirm("Delete?")
	if err != nil || !ok {
		t.Fatalf("expected confirm, got %v %v", ok, err)
	}
	ok, err = PromptConfirm("Delete?")
	if err != nil || ok {
		t.Fatalf("expected decline, got %v %v", ok, err)
	}
	if !strings.Contains(out.String(), "Delete? (y/n)") {
		t.Errorf("prompt not written: %q", out.String())
	}
}

func TestPromptSelect(t *testing.T) {
	var out bytes.Buffer
	SetIO(strings.NewReader("2\n"), &out)

	idx, err := PromptSelect("Pick", []string{"yes", "no"})
	if err != nil || idx != 1 {
		t.Fatalf("PromptSelect = %d, %v", idx, err)
	}
}

func TestPromptStringWithoutTrailingNewline(t *testing.T) {
	SetIO(strings.NewReader("history"), &bytes.Buffer{})

	s, err := PromptString("> ")
	if err != nil || s != "history" {
		t.Fatalf("PromptString = %q, %v", s, err)
	}
}
