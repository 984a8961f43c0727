package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/diagnosis-backend/internal/platform/ctxutil"
)

func TestRequestContextCarriesIDsThroughAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	user := uuid.New()
	var seen ctxutil.RequestData

	r := gin.New()
	r.Use(RequestContext())
	r.GET("/x", func(c *gin.Context) {
		// Mirrors what the bearer-token check does after verification.
		ctx := ctxutil.WithUserID(c.Request.Context(), user)
		if rd := ctxutil.GetRequestData(ctx); rd != nil {
			seen = *rd
		}
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "req-42")
	req.Header.Set("X-Trace-Id", "trace-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	want := ctxutil.RequestData{RequestID: "req-42", TraceID: "trace-42", UserID: user}
	if seen != want {
		t.Fatalf("request data = %+v, want %+v", seen, want)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("X-Request-Id = %q", got)
	}
}

func TestRequestContextGeneratesIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestContext())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	reqID := rec.Header().Get("X-Request-Id")
	if _, err := uuid.Parse(reqID); err != nil {
		t.Fatalf("X-Request-Id %q is not a uuid: %v", reqID, err)
	}
	if got := rec.Header().Get("X-Trace-Id"); got != reqID {
		t.Fatalf("X-Trace-Id = %q, want request id %q", got, reqID)
	}
}
