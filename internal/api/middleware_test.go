package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newAuthedEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	guarded := router.Group("", TokenAuth("secret-token"))
	guarded.GET("/guarded", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestTokenAuthMissingToken(t *testing.T) {
	router := newAuthedEngine()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestTokenAuthInvalidToken(t *testing.T) {
	router := newAuthedEngine()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded?token=wrong", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestTokenAuthValidToken(t *testing.T) {
	router := newAuthedEngine()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded?token=secret-token", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestTokenAuthDoesNotGuardOpenRoutes(t *testing.T) {
	router := newAuthedEngine()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
