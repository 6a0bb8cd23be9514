package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 429", &StatusError{Provider: "gemini", StatusCode: 429}, true},
		{"http 503 wrapped", fmt.Errorf("generate: %w", &StatusError{StatusCode: 503}), true},
		{"http 400", &StatusError{StatusCode: 400}, false},
		{"http 401", &StatusError{StatusCode: 401}, false},
		{"googleapi 429", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"googleapi 403", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "quota"), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "overloaded"), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), false},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "key"), false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 0, StatusCode(errors.New("x")))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(status.Error(codes.Unauthenticated, "no")))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(&StatusError{StatusCode: 503}))
}
