package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesCopies(t *testing.T) {
	sentinel := New(http.StatusConflict, "slot taken")

	withDetails := sentinel.WithDetails(map[string]string{"start": "18:00"})
	assert.ErrorIs(t, withDetails, sentinel)
	assert.Nil(t, sentinel.Details)

	wrapped := fmt.Errorf("create: %w", withDetails)
	assert.ErrorIs(t, wrapped, sentinel)
	assert.NotErrorIs(t, wrapped, New(http.StatusConflict, "other"))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause, http.StatusServiceUnavailable, "try later")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "try later", err.Error())
}
