package dbctx

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB returns the transaction when present, otherwise fallback, bound to Ctx.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Tx != nil {
		return c.Tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}

// ForUpdate adds a row lock on dialects that support SELECT ... FOR UPDATE.
// SQLite serializes writers itself and rejects the clause.
func ForUpdate(db *gorm.DB) *gorm.DB {
	if db == nil || db.Dialector == nil || db.Dialector.Name() != "postgres" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
