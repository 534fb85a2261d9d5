package context

import "context"

type draftKey struct{}

// WithDraftID tags the context with the editing session's draft id.
func WithDraftID(ctx context.Context, draftID string) context.Context {
	return context.WithValue(ctx, draftKey{}, draftID)
}

// GetDraftID returns the draft id from context or empty string.
func GetDraftID(ctx context.Context) string {
	if v, ok := ctx.Value(draftKey{}).(string); ok {
		return v
	}
	return ""
}
