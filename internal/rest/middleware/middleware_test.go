package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware, ActorMiddleware, ErrorHandler())
	r.GET("/", handler)
	return r
}

func TestActorMiddleware(t *testing.T) {
	var actor, requestID string
	r := newEngine(func(c *gin.Context) {
		actor = types.GetUserID(c.Request.Context())
		requestID = types.GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(types.HeaderUserID, "front-desk")
	req.Header.Set(types.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "front-desk", actor)
	assert.Equal(t, "req-42", requestID)
	assert.Equal(t, "req-42", rec.Header().Get(types.HeaderRequestID))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, types.DefaultUserID, actor)
	assert.NotEmpty(t, rec.Header().Get(types.HeaderRequestID))
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name: "insufficient_balance",
			err: ierr.NewError("insufficient points balance").
				WithHint("Insufficient points: balance is 400, reward costs 500").
				WithReportableDetails(map[string]any{"balance": 400}).
				Mark(ierr.ErrInsufficientBalance),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   ierr.ErrCodeInsufficientBalance,
			wantMsg:    "Insufficient points: balance is 400, reward costs 500",
		},
		{
			name:       "member_not_found",
			err:        ierr.NewError("membership not found").WithHint("Membership not found").Mark(ierr.ErrMemberNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   ierr.ErrCodeMemberNotFound,
			wantMsg:    "Membership not found",
		},
		{
			name:       "unmarked",
			err:        ierr.NewError("boom").Error(),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(func(c *gin.Context) {
				_ = c.Error(tt.err)
			})
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMsg, body.Error.Display)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body.Error.Code)
			}
		})
	}
}
