package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
)

func TestFaultyTxRunnerPassesThrough(t *testing.T) {
	r := &FaultyTxRunner{}
	called := false
	if err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !called || r.Calls != 1 || r.Rollbacks != 0 {
		t.Fatalf("unexpected state called=%v calls=%d rollbacks=%d", called, r.Calls, r.Rollbacks)
	}
}

func TestFaultyTxRunnerFailsAfterBody(t *testing.T) {
	injected := errors.New("commit lost")
	r := &FaultyTxRunner{FailAfterBody: injected}
	called := false
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, injected) {
		t.Fatalf("expected injected err, got %v", err)
	}
	if !called || r.Rollbacks != 1 {
		t.Fatalf("expected body to run then roll back, called=%v rollbacks=%d", called, r.Rollbacks)
	}
}

func TestFaultyTxRunnerFailsBegin(t *testing.T) {
	injected := errors.New("no connection")
	r := &FaultyTxRunner{FailBegin: injected}
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		t.Fatalf("body must not run")
		return nil
	})
	if !errors.Is(err, injected) {
		t.Fatalf("expected begin err, got %v", err)
	}
}
