package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
)

func TestFromBackend(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   clierrors.ErrorType
	}{
		{"unauthorized", 401, clierrors.ErrorTypeUnauthorized},
		{"server", 503, clierrors.ErrorTypeServer},
		{"conflict", 409, clierrors.ErrorTypeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := fmt.Errorf("load feed: %w", &backend.APIError{Code: tc.name, Message: "nope", StatusCode: tc.status})
			assert.True(t, clierrors.IsType(fromBackend(err), tc.want))
		})
	}

	plain := errors.New("disk full")
	assert.Equal(t, plain, fromBackend(plain))
}

func TestParseOnOff(t *testing.T) {
	on, err := parseOnOff("push", "ON")
	assert.NoError(t, err)
	assert.True(t, on)

	on, err = parseOnOff("push", "no")
	assert.NoError(t, err)
	assert.False(t, on)

	_, err = parseOnOff("push", "maybe")
	assert.True(t, clierrors.IsValidation(err))
}

func TestConfirmAssumeYes(t *testing.T) {
	assumeYes = true
	defer func() { assumeYes = false }()

	ok, err := confirm("Delete everything?")
	assert.NoError(t, err)
	assert.True(t, ok)
}
