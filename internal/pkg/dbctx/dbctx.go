package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with the transaction every write in the
// unit of work must go through. A nil Tx means "use the repo's own handle".
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func New(ctx context.Context, tx *gorm.DB) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return Context{Ctx: ctx, Tx: tx}
}
