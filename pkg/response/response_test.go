package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		write  func(*gin.Context)
		status int
		want   Response
	}{
		{
			name:   "success",
			write:  func(c *gin.Context) { Success(c, map[string]int{"n": 1}) },
			status: http.StatusOK,
			want:   Response{Success: true, Data: map[string]interface{}{"n": float64(1)}},
		},
		{
			name:   "not found",
			write:  func(c *gin.Context) { NotFound(c, "record not found") },
			status: http.StatusNotFound,
			want:   Response{Error: &ErrorInfo{Code: "NOT_FOUND", Message: "record not found"}},
		},
		{
			name:   "internal",
			write:  func(c *gin.Context) { InternalError(c, "boom") },
			status: http.StatusInternalServerError,
			want:   Response{Error: &ErrorInfo{Code: "INTERNAL_ERROR", Message: "boom"}},
		},
		{
			name:   "bad request",
			write:  func(c *gin.Context) { BadRequest(c, "missing id") },
			status: http.StatusBadRequest,
			want:   Response{Error: &ErrorInfo{Code: "BAD_REQUEST", Message: "missing id"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			tt.write(c)

			assert.Equal(t, tt.status, rec.Code)
			var got Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
