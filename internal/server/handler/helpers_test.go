package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrUnauthorized), http.StatusForbidden},
		{domain.ErrBadSignature, http.StatusUnauthorized},
		{domain.ErrNonceReused, http.StatusConflict},
		{domain.ErrHalted, http.StatusServiceUnavailable},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrUnknownAction, http.StatusBadRequest},
		{domain.ErrBelowReserveThreshold, http.StatusUnprocessableEntity},
		{domain.ErrNotAWinner, http.StatusUnprocessableEntity},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestParseListOpts(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=10&offset=5", 10, 5},
		{"?limit=9999", 500, 0},
		{"?limit=-1&offset=-3", 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			opts := parseListOpts(httptest.NewRequest(http.MethodGet, "/api/events"+tt.query, nil))
			assert.Equal(t, tt.wantLimit, opts.Limit)
			assert.Equal(t, tt.wantOffset, opts.Offset)
		})
	}
}

func TestParseAddress(t *testing.T) {
	_, err := parseAddress("0x12")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	a, err := parseAddress("0x00000000000000000000000000000000000000b0")
	assert.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000B0", a.Hex())
}
