package ctxutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithUserIDKeepsCorrelationIDs(t *testing.T) {
	base := WithRequestData(context.Background(), &RequestData{RequestID: "req-1", TraceID: "trace-1"})
	user := uuid.New()

	ctx := WithUserID(base, user)
	rd := GetRequestData(ctx)
	if rd == nil {
		t.Fatalf("expected request data")
	}
	if rd.UserID != user || rd.RequestID != "req-1" || rd.TraceID != "trace-1" {
		t.Fatalf("unexpected request data: %+v", rd)
	}
	if UserID(base) != uuid.Nil {
		t.Fatalf("parent context was mutated")
	}
}

func TestUserIDWithoutRequestData(t *testing.T) {
	if got := UserID(context.Background()); got != uuid.Nil {
		t.Fatalf("UserID() = %s, want nil uuid", got)
	}
	ctx := WithUserID(context.Background(), uuid.Nil)
	if rd := GetRequestData(ctx); rd == nil || rd.RequestID != "" {
		t.Fatalf("unexpected request data: %+v", rd)
	}
}
