package command

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "analyze", want: "analyze"},
		{in: "  Preview ", want: "analyze"},
		{in: "q", want: "quit"},
		{in: "mode GMAIL", want: "mode gmail"},
		{in: "export csv", want: "export csv"},
		{in: "", wantErr: "empty"},
		{in: "frobnicate", wantErr: "unknown command"},
		{in: "send now", wantErr: "takes no argument"},
		{in: "mode", wantErr: "needs one of"},
		{in: "mode pigeon", wantErr: "expected one of"},
		{in: "export pdf", wantErr: "expected one of"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %q", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestEnterEmitsCanonicalCommand(t *testing.T) {
	m := typeText(New(80, 24), "dispatch")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if got, ok := cmd().(CommandMsg); !ok || got != "send" {
		t.Errorf("got %v, want CommandMsg(send)", cmd())
	}
	if m.Err() != nil {
		t.Errorf("unexpected error %v", m.Err())
	}
}

func TestEnterKeepsInvalidInput(t *testing.T) {
	m := typeText(New(80, 24), "mode fax")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("invalid input must not emit a command")
	}
	if m.Err() == nil {
		t.Fatal("expected a parse error")
	}
	if !strings.Contains(m.View(), "expected one of") {
		t.Error("expected the error in the view")
	}

	m = typeText(m, "x")
	if m.Err() != nil {
		t.Error("typing should clear the error")
	}
}

func TestMatchesFilterByPrefix(t *testing.T) {
	m := typeText(New(80, 40), "ex")
	got := strings.Join(m.matches(), "\n")
	if !strings.Contains(got, "export") {
		t.Error("expected export in matches")
	}
	if strings.Contains(got, "analyze") {
		t.Error("analyze should be filtered out")
	}
}
