package context

import (
	"fmt"

	"github.com/fenwick-ai/agentrt/pkg/inference"
)

type toolResultLoc struct {
	msgIdx, blockIdx int
	name             string
}

// microCompact implements the micro-compaction algorithm (spec §4.2): it
// scans user entries for tool-result blocks, leaves the most recent
// keepRecent untouched, and replaces the rest with a short stub. The
// original slice is never mutated; a pruned copy is returned only if the
// estimated savings clear minSavings, otherwise messages is returned as-is.
func microCompact(messages []inference.Message, keepRecent, minSavings int) []inference.Message {
	var locs []toolResultLoc
	for mi, msg := range messages {
		if msg.Role != inference.RoleUser {
			continue
		}
		for bi, b := range msg.Blocks {
			if b.Type == inference.BlockToolResult {
				locs = append(locs, toolResultLoc{mi, bi, b.ToolResultName})
			}
		}
	}
	if len(locs) <= keepRecent {
		return messages
	}
	candidates := locs[:len(locs)-keepRecent]

	out := copyMessages(messages)
	savings := 0
	for _, c := range candidates {
		block := out[c.msgIdx].Blocks[c.blockIdx]
		oldTokens := tokensOfBlock(block)
		stub := fmt.Sprintf("[tool result pruned — %s: %d bytes]", displayName(c.name), len(block.ToolResultContent))
		newBlock := inference.ToolResultBlock(block.ToolResultID, block.ToolResultName, stub, block.ToolResultIsError)
		savings += oldTokens - tokensOfBlock(newBlock)
		out[c.msgIdx].Blocks[c.blockIdx] = newBlock
	}

	if savings >= minSavings {
		return out
	}
	return messages
}

func displayName(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}

// copyMessages performs the deep copy microCompact needs to mutate blocks
// without touching the caller's slice or its backing arrays.
func copyMessages(messages []inference.Message) []inference.Message {
	out := make([]inference.Message, len(messages))
	for i, m := range messages {
		out[i] = m
		if len(m.Blocks) > 0 {
			out[i].Blocks = make([]inference.ContentBlock, len(m.Blocks))
			copy(out[i].Blocks, m.Blocks)
		}
	}
	return out
}

const toolSearchName = "tool_search"

// deferTools implements the tool-deferral algorithm (spec §4.2): once the
// active set is non-empty and the full schema set would cost more than
// threshold of the effective window, only schemas the model has already
// used (plus tool_search, always) are sent.
func deferTools(all []inference.ToolSchema, active map[string]struct{}, threshold float64, effectiveWindow int) []inference.ToolSchema {
	if len(active) == 0 {
		return all
	}

	schemaTokens := tokensOfToolSchemas(all)
	fraction := 1.0
	if effectiveWindow > 0 {
		fraction = float64(schemaTokens) / float64(effectiveWindow)
	}
	if fraction <= threshold {
		return all
	}

	out := make([]inference.ToolSchema, 0, len(active)+1)
	haveSearch := false
	for _, t := range all {
		if _, ok := active[t.Name]; ok {
			out = append(out, t)
			if t.Name == toolSearchName {
				haveSearch = true
			}
		}
	}
	if !haveSearch {
		for _, t := range all {
			if t.Name == toolSearchName {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
