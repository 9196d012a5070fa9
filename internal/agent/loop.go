package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	agentcontext "github.com/fenwick-ai/agentrt/internal/context"
	"github.com/fenwick-ai/agentrt/internal/session"
	"github.com/fenwick-ai/agentrt/internal/tools"
	"github.com/fenwick-ai/agentrt/pkg/inference"
)

// CancelToken is a cooperative cancellation signal: a fired token wins a
// race against an in-flight inference call even mid-flight.
type CancelToken struct {
	ch chan struct{}
}

// NewCancelToken returns an unfired token.
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Fire trips the token. Safe to call more than once.
func (t *CancelToken) Fire() {
	select {
	case <-t.ch:
	default:
		close(t.ch)
	}
}

// Fired reports whether the token has been tripped.
func (t *CancelToken) Fired() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

func (t *CancelToken) done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.ch
}

// Loop is the agent control loop: a bounded state machine alternating
// inference turns with tool dispatch. It is grounded on the teacher's
// AgenticLoop (internal/agent/loop.go) but replaces its streaming-channel,
// session-branch-aware turn machinery with the spec's simpler atomic-turn
// contract: one inference call per turn, an explicit 8-step cycle, and a
// single managed context manager rather than a raw message history.
type Loop struct {
	provider inference.Adapter
	ctxMgr   *agentcontext.Manager
	pipeline *tools.Pipeline
	sessions session.Manager
	cfg      Config
	logger   *slog.Logger
}

// New constructs a Loop. sessions may be nil, in which case a no-op
// session.Manager is installed.
func New(provider inference.Adapter, ctxMgr *agentcontext.Manager, pipeline *tools.Pipeline, sessions session.Manager, cfg Config) *Loop {
	cfg = cfg.withDefaults()
	if sessions == nil {
		sessions = session.NopManager{}
	}
	if ctxMgr != nil {
		ctxMgr.SetThinking(cfg.Thinking)
	}
	return &Loop{
		provider: provider,
		ctxMgr:   ctxMgr,
		pipeline: pipeline,
		sessions: sessions,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// SetLogger overrides the loop's structured logger.
func (l *Loop) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Invoke runs invoke(prompt): a fresh turn sequence starting at turn 0,
// with no cancellation and no event sink.
func (l *Loop) Invoke(ctx context.Context, prompt string) (Result, error) {
	return l.InvokeWithCancel(ctx, prompt, nil)
}

// InvokeWithCancel runs invoke_with_cancel(prompt, token).
func (l *Loop) InvokeWithCancel(ctx context.Context, prompt string, token *CancelToken) (Result, error) {
	return l.run(ctx, prompt, token, NopSink{}, 0)
}

// InvokeStreaming runs invoke_streaming(prompt, sink): identical to
// Invoke but emits AgentEvents to sink as the turn loop progresses.
func (l *Loop) InvokeStreaming(ctx context.Context, prompt string, sink Sink) (Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	return l.run(ctx, prompt, nil, sink, 0)
}

// Resume runs resume(session_id): loads the persisted checkpoint, restores
// it into the context manager, and continues from state.turn + 1. ok is
// false when no checkpoint exists for the loop's configured session_id.
func (l *Loop) Resume(ctx context.Context) (result Result, ok bool, err error) {
	if l.cfg.SessionID == "" {
		return Result{}, false, nil
	}
	cp, found, err := l.sessions.Load(l.cfg.SessionID)
	if err != nil {
		return Result{}, false, fmt.Errorf("agent: resume: %w", err)
	}
	if !found {
		return Result{}, false, nil
	}
	if err := l.ctxMgr.Restore(cp.ContextSnapshot); err != nil {
		return Result{}, false, fmt.Errorf("agent: resume: restore snapshot: %w", err)
	}

	result, err = l.run(ctx, "", nil, NopSink{}, cp.Turn+1)
	return result, true, err
}

// run executes the turn loop starting at startTurn. A non-empty prompt is
// added before the first turn; an empty prompt (the resume() path)
// continues directly from the restored context.
func (l *Loop) run(ctx context.Context, prompt string, token *CancelToken, sink Sink, startTurn int) (Result, error) {
	if l.provider == nil {
		return Result{}, ErrNoProvider
	}
	if prompt != "" {
		l.ctxMgr.AddPrompt(prompt)
	}

	var finalText string
	var usage inference.Usage

	for turn := startTurn; turn < l.cfg.MaxTurns; turn++ {
		if token.Fired() {
			return Result{}, &Error{Phase: PhaseTurnStart, Turn: turn, Cause: ErrCancelled}
		}
		sink.Emit(AgentEvent{Type: EventTurnStart, Turn: turn})

		if l.ctxMgr.NeedsCompaction() {
			l.compact(ctx, turn, sink, &usage)
		}

		req := l.ctxMgr.BuildRequest()
		resp, err := l.inferWithCancel(ctx, req, token)
		if err != nil {
			if errFired(err) {
				return Result{}, &Error{Phase: PhaseInfer, Turn: turn, Cause: ErrCancelled}
			}
			return Result{}, &Error{Phase: PhaseInfer, Turn: turn, Cause: err}
		}

		usage = usage.Add(resp.Usage)
		l.ctxMgr.RecordResponse(resp)

		for _, b := range resp.Content {
			if b.Type == inference.BlockText {
				finalText = b.Text
				sink.Emit(AgentEvent{Type: EventText, Turn: turn, Content: b.Text})
			}
		}

		switch resp.StopReason {
		case inference.StopEndTurn:
			sink.Emit(AgentEvent{Type: EventFinished, Turn: turn, Turns: turn + 1, Usage: usage})
			if err := l.checkpoint(turn, sink); err != nil {
				return Result{}, &Error{Phase: PhaseCheckpoint, Turn: turn, Cause: err}
			}
			return Result{FinalText: finalText, Turns: turn + 1, Usage: usage}, nil

		case inference.StopToolUse:
			for _, b := range resp.ToolUses() {
				l.dispatchTool(ctx, turn, b, sink)
			}

		case inference.StopMaxTokens:
			l.logger.Warn("turn ended at max_tokens, continuing with same history", "turn", turn)
		}

		if err := l.checkpoint(turn, sink); err != nil {
			return Result{}, &Error{Phase: PhaseCheckpoint, Turn: turn, Cause: err}
		}
	}

	sink.Emit(AgentEvent{Type: EventFinished, Turn: l.cfg.MaxTurns, Turns: l.cfg.MaxTurns, Usage: usage})
	return Result{FinalText: finalText, Turns: l.cfg.MaxTurns, Usage: usage}, nil
}

// compact asks the context manager for a compaction request and, if one is
// returned, runs it through the provider. Failure here is logged and
// non-fatal: the turn proceeds without compacting.
func (l *Loop) compact(ctx context.Context, turn int, sink Sink, usage *inference.Usage) {
	req, ok := l.ctxMgr.BuildCompactionRequest()
	if !ok {
		return
	}
	preTokens := l.ctxMgr.MessagesTokenEstimate()

	resp, err := l.provider.Infer(ctx, req)
	if err != nil {
		l.logger.Warn("compaction inference failed, continuing uncompacted", "turn", turn, "error", err)
		return
	}
	*usage = usage.Add(resp.Usage)
	l.ctxMgr.Compact(resp.Text())

	postTokens := l.ctxMgr.MessagesTokenEstimate()
	sink.Emit(AgentEvent{Type: EventCompacted, Turn: turn, PreTokens: preTokens, PostTokens: postTokens})
}

// dispatchTool executes one ToolUse block through the pipeline. A failed
// tool does not abort the turn — its error text is recorded as a tool
// result with is_error=true.
func (l *Loop) dispatchTool(ctx context.Context, turn int, b inference.ContentBlock, sink Sink) {
	sink.Emit(AgentEvent{Type: EventToolCall, Turn: turn, ToolName: b.ToolName, ToolInput: b.ToolInput})

	output, isError := l.pipeline.Execute(ctx, b.ToolName, b.ToolInput)

	sink.Emit(AgentEvent{Type: EventToolResult, Turn: turn, ToolName: b.ToolName, ToolOutput: output, IsError: isError})
	l.ctxMgr.RecordToolResult(b.ToolUseID, b.ToolName, output, isError)
}

// checkpoint persists {turn, context.snapshot(), pending_tool_calls} when a
// session_id is configured. Per spec §7, a checkpoint failure is not
// advisory: it surfaces as a SessionError and the caller aborts the
// invocation, since losing the ability to resume is itself meaningful.
func (l *Loop) checkpoint(turn int, sink Sink) error {
	if l.cfg.SessionID == "" {
		return nil
	}
	snap, err := l.ctxMgr.Snapshot()
	if err != nil {
		return &SessionError{Op: "snapshot", Cause: err}
	}
	now := time.Now()
	cp := session.Checkpoint{
		Turn:             turn,
		ContextSnapshot:  snap,
		PendingToolCalls: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := l.sessions.Save(l.cfg.SessionID, cp); err != nil {
		return &SessionError{Op: "save", Cause: err}
	}
	return nil
}

// inferWithCancel races the provider call against token, if one is armed.
// A fired token wins even mid-flight; the underlying inference call is not
// itself interrupted (the provider contract has no partial-response
// notion), but the loop treats the race's outcome as authoritative.
func (l *Loop) inferWithCancel(ctx context.Context, req inference.InferenceRequest, token *CancelToken) (inference.InferenceResponse, error) {
	if token == nil {
		return l.provider.Infer(ctx, req)
	}

	type result struct {
		resp inference.InferenceResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := l.provider.Infer(ctx, req)
		done <- result{resp, err}
	}()

	select {
	case <-token.done():
		return inference.InferenceResponse{}, cancelledErr{}
	case r := <-done:
		return r.resp, r.err
	}
}

type cancelledErr struct{}

func (cancelledErr) Error() string { return ErrCancelled.Error() }

func errFired(err error) bool {
	_, ok := err.(cancelledErr)
	return ok
}
