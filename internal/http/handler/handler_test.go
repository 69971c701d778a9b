package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		service.ErrInvalidURL:                             http.StatusBadRequest,
		fmt.Errorf("%w: too long", service.ErrInvalidURL): http.StatusBadRequest,
		service.ErrInvalidCode:                            http.StatusBadRequest,
		service.ErrCodeReserved:                           http.StatusBadRequest,
		service.ErrCodeTaken:                              http.StatusConflict,
		service.ErrForbidden:                              http.StatusForbidden,
		service.ErrNotFound:                               http.StatusNotFound,
		service.ErrExpired:                                http.StatusGone,
		errors.New("connection reset"):                    http.StatusInternalServerError,
	}
	for err, want := range cases {
		status, msg := statusFor(err)
		assert.Equal(t, want, status, err.Error())
		assert.NotEmpty(t, msg)
	}

	_, msg := statusFor(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", msg)
}

func TestExplicitNull(t *testing.T) {
	assert.True(t, explicitNull([]byte(`{"expires_at":null}`), "expires_at"))
	assert.True(t, explicitNull([]byte(`{"is_active":true,"expires_at": null}`), "expires_at"))
	assert.False(t, explicitNull([]byte(`{"is_active":true}`), "expires_at"))
	assert.False(t, explicitNull([]byte(`{"expires_at":"2030-01-01T00:00:00Z"}`), "expires_at"))
	assert.False(t, explicitNull([]byte(`not json`), "expires_at"))
}
