// Package context manages the conversation log fed to the inference
// adapter: token budgeting, micro-compaction, tool-schema deferral, and
// full/partial auto-compaction via summarization. Nothing here talks to a
// network — compaction requests are handed to the caller (the agent loop),
// which performs the inference call and feeds the resulting summary back
// through Compact.
package context

// Config holds the tunable thresholds governing compaction and deferral.
// NewManager replaces an all-zero Config with DefaultConfig(); any other
// Config is used as given, so a zero threshold or count means exactly zero.
type Config struct {
	// CompactionThreshold triggers auto-compaction when usage_fraction
	// reaches it. Default 0.80.
	CompactionThreshold float64

	// PruneThreshold triggers micro-compaction when usage_fraction
	// reaches it. Default 0.70.
	PruneThreshold float64

	// KeepRecentToolResults never prunes the N most recent tool-result
	// blocks. Default 3.
	KeepRecentToolResults int

	// MinPruneSavingsTokens abandons a pruned copy unless it saves at
	// least this many estimated tokens. Default 5000.
	MinPruneSavingsTokens int

	// ToolDeferThreshold: if tool schemas exceed this fraction of the
	// effective window, only actively-used schemas are sent. Default 0.15.
	ToolDeferThreshold float64
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		CompactionThreshold:   0.80,
		PruneThreshold:        0.70,
		KeepRecentToolResults: 3,
		MinPruneSavingsTokens: 5000,
		ToolDeferThreshold:    0.15,
	}
}

func (c Config) withDefaults() Config {
	if c == (Config{}) {
		return DefaultConfig()
	}
	return c
}

// TokenBudget is a derived view over the manager's current token usage.
type TokenBudget struct {
	ContextWindow    int
	MaxOutput        int
	MessageTokens    int
	SystemTokens     int
	ToolSchemaTokens int
}

// EffectiveWindow is the context window minus the reserved output budget
// (capped at 20000 tokens of reservation).
func (b TokenBudget) EffectiveWindow() int {
	reserve := b.MaxOutput
	if reserve > 20000 {
		reserve = 20000
	}
	ew := b.ContextWindow - reserve
	if ew < 0 {
		return 0
	}
	return ew
}

// TotalUsed sums every tracked token category.
func (b TokenBudget) TotalUsed() int {
	return b.MessageTokens + b.SystemTokens + b.ToolSchemaTokens
}

// UsageFraction is TotalUsed / EffectiveWindow, reporting 1.0 when the
// effective window is zero rather than dividing by zero.
func (b TokenBudget) UsageFraction() float64 {
	ew := b.EffectiveWindow()
	if ew == 0 {
		return 1.0
	}
	return float64(b.TotalUsed()) / float64(ew)
}

// CompactionState tracks whether and how many times auto-compaction has run.
type CompactionState struct {
	HasCompacted      bool
	LastBoundaryIndex int
	CompactionCount   uint32
}
