package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/diagnosis-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// RequestContext seeds ctxutil.RequestData with correlation ids and echoes
// them back. An active span's trace id wins over the inbound header.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{
			RequestID: strings.TrimSpace(c.GetHeader(headerRequestID)),
			TraceID:   spanTraceID(c),
		}
		if rd.RequestID == "" {
			rd.RequestID = uuid.NewString()
		}
		if rd.TraceID == "" {
			rd.TraceID = strings.TrimSpace(c.GetHeader(headerTraceID))
		}
		if rd.TraceID == "" {
			rd.TraceID = rd.RequestID
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Writer.Header().Set(headerTraceID, rd.TraceID)
		c.Writer.Header().Set(headerRequestID, rd.RequestID)
		c.Next()
	}
}

func spanTraceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
