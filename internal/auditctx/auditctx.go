// Package auditctx carries the origin of an API request down to the audit log.
package auditctx

import "context"

// Origin describes where a request came from. The identity endpoints are not
// authenticated, so the client address stands in for an actor.
type Origin struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type originContextKey struct{}

// WithOrigin returns a derived context carrying origin.
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, originContextKey{}, origin)
}

// FromContext extracts the origin stored by WithOrigin.
func FromContext(ctx context.Context) (Origin, bool) {
	if ctx == nil {
		return Origin{}, false
	}
	origin, ok := ctx.Value(originContextKey{}).(Origin)
	return origin, ok
}
