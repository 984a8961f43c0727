package services

import (
	"context"

	"github.com/yungbote/diagnosis-backend/internal/platform/dbctx"
)

func dbcOf(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}
