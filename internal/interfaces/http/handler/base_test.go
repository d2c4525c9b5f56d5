package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaskit/backend/internal/domain/shared"
	"github.com/saaskit/backend/internal/interfaces/http/dto"
)

func handleErrorResponse(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()

	var h BaseHandler
	engine := gin.New()
	engine.GET("/boom", func(c *gin.Context) {
		h.HandleError(c, err)
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHandleErrorDomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped not found", fmt.Errorf("%w: profile", shared.ErrNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, dto.ErrCodeForbidden},
		{"invalid state", shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"rate limited", shared.ErrRateLimited, http.StatusTooManyRequests, dto.ErrCodeRateLimited},
		{"subscription required", shared.ErrSubscriptionRequired, http.StatusForbidden, dto.ErrCodeSubscriptionRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := handleErrorResponse(t, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestHandleErrorUnknownError(t *testing.T) {
	w := handleErrorResponse(t, errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	// Internal details never leak to the client.
	assert.NotContains(t, resp.Error.Message, "disk on fire")
}
