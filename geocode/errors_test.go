// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"errors"
	"net/http"
	"testing"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "rate limit error type",
			err: &GeocodingError{
				Type:    ErrorTypeRateLimit,
				Message: "rate limit exceeded",
			},
			want: true,
		},
		{
			name: "error message contains rate limit",
			err:  errors.New("rate limit exceeded"),
			want: true,
		},
		{
			name: "error message contains too many requests",
			err:  errors.New("too many requests"),
			want: true,
		},
		{
			name: "error message contains 429",
			err:  errors.New("nominatim returned status 429"),
			want: true,
		},
		{
			name: "other error type",
			err: &GeocodingError{
				Type:    ErrorTypeNotFound,
				Message: "not found",
			},
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("some other error"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimitError(tt.err); got != tt.want {
				t.Errorf("IsRateLimitError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTimeoutError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "timeout error type",
			err:  &GeocodingError{Type: ErrorTypeTimeout, Message: "request timed out"},
			want: true,
		},
		{
			name: "deadline exceeded message",
			err:  errors.New("context deadline exceeded"),
			want: true,
		},
		{
			name: "network error type",
			err:  &GeocodingError{Type: ErrorTypeNetwork, Message: "connection refused"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeoutError(tt.err); got != tt.want {
				t.Errorf("IsTimeoutError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "rate limit is retryable",
			err:  &GeocodingError{Type: ErrorTypeRateLimit, Message: "slow down"},
			want: true,
		},
		{
			name: "network failure is retryable",
			err:  &GeocodingError{Type: ErrorTypeNetwork, Message: "connection reset"},
			want: true,
		},
		{
			name: "quota exhaustion is final",
			err:  &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "quota spent"},
			want: false,
		},
		{
			name: "invalid request is final",
			err:  &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "bad params"},
			want: false,
		},
		{
			name: "not found is final",
			err:  &GeocodingError{Type: ErrorTypeNotFound, Message: "no data"},
			want: false,
		},
		{
			name: "plain timeout message",
			err:  errors.New("i/o timeout"),
			want: true,
		},
		{
			name: "plain unrelated error",
			err:  errors.New("disk full"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{status: http.StatusTooManyRequests, want: ErrorTypeRateLimit},
		{status: http.StatusForbidden, want: ErrorTypeQuotaExceeded},
		{status: http.StatusBadRequest, want: ErrorTypeInvalidRequest},
		{status: http.StatusNotFound, want: ErrorTypeNotFound},
		{status: http.StatusServiceUnavailable, want: ErrorTypeNetwork},
		{status: http.StatusBadGateway, want: ErrorTypeNetwork},
		{status: http.StatusTeapot, want: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got.Type != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d).Type = %v, want %v", tt.status, got.Type, tt.want)
		}
	}
}

func TestGeocodingErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &GeocodingError{Type: ErrorTypeNetwork, Message: "outer", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is() does not see the wrapped error")
	}

	if err.Error() != "outer: inner" {
		t.Errorf("Error() = %q", err.Error())
	}
}
