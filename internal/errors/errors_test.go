package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: run not found", New(CodeNotFound, "run not found").Error())

	wrapped := Wrap(assert.AnError, CodeExternal, "yt-dlp failed")
	assert.Contains(t, wrapped.Error(), "EXTERNAL_ERROR: yt-dlp failed (caused by:")
	assert.ErrorIs(t, wrapped, assert.AnError)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "app error", err: New(CodeInvalidArg, "bad"), want: CodeInvalidArg},
		{name: "wrapped by fmt", err: fmt.Errorf("ctx: %w", New(CodeNotFound, "x")), want: CodeNotFound},
		{name: "plain error", err: assert.AnError, want: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIsCode_NestedChain(t *testing.T) {
	inner := New(CodeNotFound, "cleaned transcript missing")
	outer := Wrap(inner, CodeExternal, "summary failed")

	assert.True(t, IsCode(outer, CodeNotFound))
	assert.True(t, IsCode(outer, CodeExternal))
	assert.False(t, IsCode(outer, CodeConflict))
	assert.False(t, IsCode(assert.AnError, CodeInternal))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidArg, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeExternal, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(New(tt.code, "x")))
		})
	}
}
