package agent

import (
	"errors"
	"testing"
)

func TestError_UnwrapsToSentinel(t *testing.T) {
	err := &Error{Phase: PhaseInfer, Turn: 2, Cause: ErrCancelled}
	if !errors.Is(err, ErrCancelled) {
		t.Fatal("expected errors.Is to find the wrapped sentinel")
	}
}

func TestError_MessageNamesPhaseAndTurn(t *testing.T) {
	err := &Error{Phase: PhaseToolCall, Turn: 4, Cause: errors.New("boom")}
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty message")
	}
}
