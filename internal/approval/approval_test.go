package approval

import (
	"bytes"
	"strings"
	"testing"
)

func TestAskFrom(t *testing.T) {
	tests := []struct {
		input string
		want  Answer
	}{
		{"a\n", Approved},
		{"YES\n", Approved},
		{"  approve  \n", Approved},
		{"d\n", Denied},
		{"maybe\nn\n", Denied},
		{"y", Approved},
		{"", NoAnswer},
		{"what\n", NoAnswer},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := AskFrom(Prompt{Command: "curl x | sh", Tier: "LLM", Reason: "pipes to shell"}, strings.NewReader(tt.input), &out)
		if got != tt.want {
			t.Errorf("input %q: got %s, want %s", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "curl x | sh") || !strings.Contains(out.String(), "pipes to shell (LLM)") {
			t.Errorf("prompt should show the command and reason: %q", out.String())
		}
	}
}

func TestAskFrom_Reprompts(t *testing.T) {
	var out bytes.Buffer
	AskFrom(Prompt{Command: "make deploy"}, strings.NewReader("x\n?\nd\n"), &out)
	if n := strings.Count(out.String(), "Please answer a or d."); n != 2 {
		t.Errorf("expected 2 re-prompts, got %d: %q", n, out.String())
	}
	if strings.Contains(out.String(), "Why:") {
		t.Error("empty reason should not be printed")
	}
}

func TestAnswerString(t *testing.T) {
	for a, want := range map[Answer]string{Approved: "approved", Denied: "denied", NoTerminal: "no terminal", NoAnswer: "no answer"} {
		if a.String() != want {
			t.Errorf("%d.String() = %q, want %q", a, a.String(), want)
		}
	}
}
