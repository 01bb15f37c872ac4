package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/suturelab/tissuesim/internal/config"
)

func wsRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WebSocketCORSCheck(cfg))
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func upgradeRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestWebSocketOriginCheck(t *testing.T) {
	prod := &config.Config{Environment: "production", FrontendURL: "https://sim.example.org, https://lab.example.org"}
	dev := &config.Config{Environment: "development"}

	cases := []struct {
		name   string
		cfg    *config.Config
		origin string
		want   int
	}{
		{"prod allowed", prod, "https://lab.example.org", http.StatusNoContent},
		{"prod foreign", prod, "https://evil.example.com", http.StatusForbidden},
		{"prod missing origin", prod, "", http.StatusBadRequest},
		{"dev localhost", dev, "http://localhost:5173", http.StatusNoContent},
		{"dev foreign", dev, "https://sim.example.org", http.StatusForbidden},
		{"dev no origin", dev, "", http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		wsRouter(tc.cfg).ServeHTTP(w, upgradeRequest(tc.origin))
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestPlainRequestsSkipOriginCheck(t *testing.T) {
	cfg := &config.Config{Environment: "production"}
	w := httptest.NewRecorder()
	wsRouter(cfg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected plain GET to pass, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(&config.Config{Environment: "production", FrontendURL: "https://sim.example.org"}))
	r.POST("/api/v1/sessions", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://sim.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://sim.example.org" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}
