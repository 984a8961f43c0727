package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData is the per-request identity: correlation ids set at the edge and
// the caller once a bearer token has been verified.
type RequestData struct {
	RequestID string
	TraceID   string
	UserID    uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// WithUserID attaches the caller, keeping any correlation ids already on ctx.
// The stored RequestData is copied, never mutated.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	next := RequestData{UserID: userID}
	if rd := GetRequestData(ctx); rd != nil {
		next.RequestID = rd.RequestID
		next.TraceID = rd.TraceID
	}
	return WithRequestData(ctx, &next)
}

// UserID returns the authenticated caller or uuid.Nil.
func UserID(ctx context.Context) uuid.UUID {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.UserID
	}
	return uuid.Nil
}
