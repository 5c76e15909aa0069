package shared

import "context"

// Context keys for session-scoped data. Keep types unexported to avoid collisions.
type ctxKey string

const (
	ctxKeySessionID ctxKey = "session-id"
	ctxKeyReviewer  ctxKey = "reviewer"
)

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySessionID).(string)
	return v
}

func WithReviewer(ctx context.Context, reviewer string) context.Context {
	return context.WithValue(ctx, ctxKeyReviewer, reviewer)
}

func Reviewer(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyReviewer).(string)
	return v
}
