package ctxutil

import "context"

type traceDataKey struct{}

type operatorKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// WithOperator records which operator initiated the request so that review
// actions deeper in the call stack can attribute themselves without threading
// the id through every signature.
func WithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operatorID)
}

func GetOperator(ctx context.Context) string {
	val := ctx.Value(operatorKey{})
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
