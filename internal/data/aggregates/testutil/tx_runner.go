package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/diagnosis-backend/internal/data/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
)

// FaultyTxRunner wraps a real runner and injects failures. FailAfterBody is
// returned from inside the transaction once the body succeeded, so the inner
// runner rolls back everything the body wrote.
type FaultyTxRunner struct {
	Inner aggregates.TxRunner

	mu            sync.Mutex
	FailBegin     error
	FailAfterBody error

	Calls     int
	Rollbacks int
}

var _ aggregates.TxRunner = (*FaultyTxRunner)(nil)

func (r *FaultyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.Calls++
	failBegin := r.FailBegin
	failAfter := r.FailAfterBody
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	run := func(dbc dbctx.Context) error {
		if err := fn(dbc); err != nil {
			r.rolledBack()
			return err
		}
		if failAfter != nil {
			r.rolledBack()
			return failAfter
		}
		return nil
	}
	if r.Inner == nil {
		return run(dbctx.Context{Ctx: ctx})
	}
	return r.Inner.InTx(ctx, run)
}

func (r *FaultyTxRunner) rolledBack() {
	r.mu.Lock()
	r.Rollbacks++
	r.mu.Unlock()
}
