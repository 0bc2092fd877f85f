package context

import (
	"context"
)

const contextKeyAccountID = contextKey("accountID")

// AccountIDFromContext extracts the authenticated account ID from the context.
// Returns the account ID and true if present, or zero and false if not present.
func AccountIDFromContext(ctx context.Context) (int64, bool) {
	accountID, ok := ctx.Value(contextKeyAccountID).(int64)

	return accountID, ok
}

// WithAccountID creates a new context carrying the authenticated account ID.
// Set by the authorizing middleware after successful token verification.
func WithAccountID(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, contextKeyAccountID, accountID)
}
