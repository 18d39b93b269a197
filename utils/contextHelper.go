package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/fulfillment_backend/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyRequestedBy   = appctx.ContextKeyRequestedBy
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetRequestedByFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRequestedBy)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetRequestedByInContext(ctx context.Context, requestedBy string) context.Context {
	return appctx.Set(ctx, ContextKeyRequestedBy, requestedBy)
}
