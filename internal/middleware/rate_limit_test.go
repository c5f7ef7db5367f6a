package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(NewClientRateLimiter(rps, burst)))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func doPing(router *gin.Engine, addr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = addr
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	router := newLimitedRouter(1, 2)

	for i := 0; i < 2; i++ {
		if code := doPing(router, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, code)
		}
	}
	if code := doPing(router, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("burst overflow = %d, want 429", code)
	}
}

func TestRateLimitIsPerClient(t *testing.T) {
	router := newLimitedRouter(1, 1)

	if code := doPing(router, "10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first client = %d, want 200", code)
	}
	if code := doPing(router, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("exhausted client = %d, want 429", code)
	}
	if code := doPing(router, "10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("fresh client = %d, want 200", code)
	}
}
