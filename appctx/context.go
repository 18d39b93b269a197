package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	// ContextKeyCorrelationId threads one request's id through enqueue,
	// dispatch and error logs.
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeyRequestedBy names the actor a reservation is taken for
	// (batch promising job, CSR, dispatcher). Used only for ledger descriptions.
	ContextKeyRequestedBy = ContextKey("RequestedBy")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
