package handlers

import (
	"context"
	"errors"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/lib/logger"
	"github.com/14kear/online_voting/voting-engine/internal/middleware"
	"github.com/14kear/online_voting/voting-engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewVotingHandler(logger.Discard(), nil)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("op: %w", services.ErrNotFound), http.StatusNotFound},
		{"closed", services.ErrPollClosed, http.StatusConflict},
		{"already voted", fmt.Errorf("op: %w", services.ErrAlreadyVoted), http.StatusConflict},
		{"not eligible", services.ErrNotEligible, http.StatusForbidden},
		{"results hidden", services.ErrResultsNotPublic, http.StatusForbidden},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"validation", fmt.Errorf("%w: unknown choice", services.ErrValidation), http.StatusUnprocessableEntity},
		{"lock timeout", fmt.Errorf("op: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.writeError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestWriteError_ValidationMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewVotingHandler(logger.Discard(), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h.writeError(c, fmt.Errorf("%w: star ballot scores 2 of 3 choices", services.ErrValidation))

	assert.Contains(t, w.Body.String(), "star ballot scores 2 of 3 choices")
}

func TestViewer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(middleware.UserIDKey, "u1")
	c.Set(middleware.ManagerKey, true)

	assert.Equal(t, services.Viewer{UserID: "u1", Manager: true}, viewer(c))
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, services.Viewer{}, viewer(c2))
}
