package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"cymbalrag/internal/errs"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := &API{}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errs.Validationf("bad format"), http.StatusBadRequest},
		{"conflict", errs.Conflictf("file exists"), http.StatusConflict},
		{"not found", errs.NotFoundf("no such file"), http.StatusNotFound},
		{"processing", errs.Processingf("corr-1", "embedding failed"), http.StatusInternalServerError},
		{"external", errs.Externalf("gemini timeout"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			a.writeError(c, tc.err)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
