package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

type stubHandler struct {
	routes []string
	calls  int
}

func (h *stubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	w.WriteHeader(http.StatusOK)
}

func (h *stubHandler) Routes() []string { return h.routes }

func TestCallbackRouter(t *testing.T) {
	t.Run("Routes Every Declared Pattern", func(t *testing.T) {
		router := NewCallbackRouter()
		handler := &stubHandler{routes: []string{"/callback", "/done"}}
		router.Handler(handler)

		for _, path := range handler.routes {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusOK {
				t.Errorf("expected 200 for %s, got %d", path, w.Code)
			}
		}
		if handler.calls != 2 {
			t.Errorf("expected 2 handler calls, got %d", handler.calls)
		}
	})

	t.Run("Middleware Applied In Order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewCallbackRouter()
		router.Use(tag("first"), tag("second"))
		router.Handler(&stubHandler{routes: []string{"/callback"}})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback", nil))

		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("unexpected middleware order: %v", order)
		}
	})

	t.Run("Request Logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := log.New(&buf)
		logger.SetLevel(log.DebugLevel)

		router := NewCallbackRouter()
		router.Use(RequestLogger(logger))
		router.Handler(&stubHandler{routes: []string{"/callback"}})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=x", nil))

		if !strings.Contains(buf.String(), "/callback") {
			t.Errorf("expected the request path in the log, got %q", buf.String())
		}
	})
}
