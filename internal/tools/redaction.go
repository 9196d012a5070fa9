package tools

import (
	"encoding/json"
	"regexp"
	"strings"
)

// credentialPatterns are the named credential-prefix shapes the bundled
// redaction transform scrubs from tool output, applied in list order. The
// OpenAI pattern's charset has no '-', so it does not match "sk-ant-..."
// keys; those are caught by the Anthropic pattern.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[A-Za-z0-9-]{20,}`),                 // Anthropic
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),                      // OpenAI
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`),               // GitHub (classic)
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`),             // GitHub (fine-grained)
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                         // AWS access key
	regexp.MustCompile(`(sk|pk)_(live|test)_[A-Za-z0-9]{20,}`),     // Stripe
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),             // Slack
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_.=]{20,}`),       // Bearer token
}

// genericHexPattern finds long hex runs; redact only replaces a run that
// mixes digits and letters, so all-digit or all-letter runs are kept.
var genericHexPattern = regexp.MustCompile(`\b[0-9a-fA-F]{40,}\b`)

const redactedPlaceholder = "[REDACTED]"

// RedactionTransform is the bundled credential-redaction transform. It
// applies unconditionally to every tool's output, including error output —
// a failed tool call can leak a credential in its message just as readily
// as a successful one.
var RedactionTransform = Transform{
	Name:      "redaction",
	AppliesTo: func(toolName string, input json.RawMessage) bool { return true },
	Apply: func(toolName string, input json.RawMessage, output string) (string, error) {
		return redact(output), nil
	},
}

func redact(s string) string {
	for _, pat := range credentialPatterns {
		s = pat.ReplaceAllString(s, redactedPlaceholder)
	}
	return genericHexPattern.ReplaceAllStringFunc(s, func(m string) string {
		if strings.ContainsAny(m, "0123456789") && strings.ContainsAny(m, "abcdefABCDEF") {
			return redactedPlaceholder
		}
		return m
	})
}
