package tools

import (
	"strings"
	"testing"
)

func TestRedaction_ScrubsKnownCredentialShapes(t *testing.T) {
	cases := []struct {
		name   string
		secret string
	}{
		{"openai", "sk-" + strings.Repeat("a", 25)},
		{"anthropic", "sk-ant-" + strings.Repeat("a", 25)},
		{"github-classic", "ghp_" + strings.Repeat("a", 25)},
		{"github-fine-grained", "github_pat_" + strings.Repeat("a", 25)},
		{"aws", "AKIA" + strings.Repeat("A", 16)},
		{"stripe", "sk_live_" + strings.Repeat("a", 25)},
		{"slack", "xoxb-" + strings.Repeat("1", 15)},
		{"bearer", "Bearer " + strings.Repeat("a", 25)},
		{"generic-hex", strings.Repeat("a1", 21)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := "here is the value: " + tc.secret + " end"
			out := redact(input)

			if strings.Contains(out, tc.secret) {
				t.Fatalf("redacted output still contains full secret: %q", out)
			}

			tail := tc.secret[len(tc.secret)-10:]
			if strings.Contains(out, tail) {
				t.Fatalf("redacted output still contains secret tail %q: %q", tail, out)
			}
			if !strings.Contains(out, redactedPlaceholder) {
				t.Fatalf("expected redaction placeholder in output: %q", out)
			}
		})
	}
}

func TestRedaction_LeavesOrdinaryTextAlone(t *testing.T) {
	in := "the quick brown fox jumps over the lazy dog, file.txt has 12345 lines"
	out := redact(in)
	if out != in {
		t.Errorf("ordinary text was modified: %q -> %q", in, out)
	}
}

func TestRedactionTransform_AppliesToErrorOutputToo(t *testing.T) {
	secret := "sk-" + strings.Repeat("b", 25)
	out, err := RedactionTransform.Apply("any-tool", nil, "request failed, token was "+secret)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if strings.Contains(out, secret) {
		t.Fatalf("error-path output still contains secret: %q", out)
	}
}
