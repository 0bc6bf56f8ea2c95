package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func tag(name string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Order", name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestChainOrder(t *testing.T) {
	chain := NewChain(tag("outer")).Append(tag("inner"))
	h := chain.Then(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", w.Code)
	}
	order := w.Header().Values("X-Order")
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("first middleware should be outermost, got %v", order)
	}
}

func TestStatusRecorderCapturesImplicitOK(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	rec.Write([]byte("hi"))
	if rec.status != http.StatusOK {
		t.Errorf("implicit write should record 200, got %d", rec.status)
	}
}

func TestAccessLogPassesThrough(t *testing.T) {
	h := AccessLog()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/events", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("middleware must not alter the response, got %d", w.Code)
	}
}
