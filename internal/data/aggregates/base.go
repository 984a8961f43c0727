package aggregates

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/yungbote/diagnosis-backend/internal/domain/aggregates"
	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	Now      func() time.Time
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// executeWrite runs fn in one transaction. Nothing fn wrote survives an error.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	err := deps.Runner.InTx(ctx, fn)
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		switch {
		case domainagg.IsCode(mapped, domainagg.CodeConflict):
			deps.Hooks.IncConflict(op)
		case domainagg.IsCode(mapped, domainagg.CodeRetryable):
			deps.Hooks.IncRetry(op)
		}
		if status == string(domainagg.CodeInternal) {
			deps.Log.Error("aggregate write failed", "op", op, "error", mapped)
		} else {
			deps.Log.Debug("aggregate write rejected", "op", op, "code", status, "error", mapped)
		}
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
