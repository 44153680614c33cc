package response

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

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"app error", apperror.New(http.StatusForbidden, "nope"), http.StatusForbidden, "nope"},
		{"wrapped app error", fmt.Errorf("x: %w", apperror.New(http.StatusNotFound, "gone")), http.StatusNotFound, "gone"},
		{"validation", &store.ValidationError{Field: "guests_count", Reason: "must be at least 1"}, http.StatusBadRequest, "guests_count: must be at least 1"},
		{"not found", fmt.Errorf("find: %w", store.ErrNotFound), http.StatusNotFound, "not found"},
		{"constraint", &store.ConstraintError{Kind: store.KindUnique}, http.StatusConflict, "request conflicts with existing data"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}

func TestNewPageResponseNeverNull(t *testing.T) {
	resp := NewPageResponse[int](nil, 1, 20, 0)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"page":1,"page_size":20,"total":0,"total_pages":0}`, string(b))
}

func TestNewPageResponseTotalPages(t *testing.T) {
	assert.Equal(t, 3, NewPageResponse([]int{1}, 3, 20, 41).TotalPages)
	assert.Equal(t, 2, NewPageResponse([]int{1}, 1, 20, 40).TotalPages)
	assert.Equal(t, 0, NewPageResponse([]int{}, 1, 0, 5).TotalPages)
}
