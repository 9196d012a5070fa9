package context

import (
	"encoding/json"

	"github.com/fenwick-ai/agentrt/pkg/inference"
)

// tokens applies the deliberately crude chars/4 heuristic (spec'd, not an
// oversight): byte_len / 4.
func tokens(s string) int {
	return len(s) / 4
}

// tokensOfValue serializes v to JSON and applies the same heuristic, for
// structured values that don't have a single natural string form.
func tokensOfValue(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b) / 4
}

func tokensOfMessage(m inference.Message) int {
	return tokensOfValue(m)
}

func tokensOfMessages(messages []inference.Message) int {
	total := 0
	for _, m := range messages {
		total += tokensOfMessage(m)
	}
	return total
}

func tokensOfToolSchemas(schemas []inference.ToolSchema) int {
	total := 0
	for _, s := range schemas {
		total += tokensOfValue(s)
	}
	return total
}

func tokensOfBlock(b inference.ContentBlock) int {
	return tokensOfValue(b)
}
