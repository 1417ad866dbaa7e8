// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// GeocodingError represents a classified failure of a provider request.
type GeocodingError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType distinguishes provider failure modes.
type ErrorType int

const (
	// ErrorTypeUnknown is an unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit means the backend rejected us for querying too fast.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded means the daily/monthly quota is spent.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout is a request deadline expiry.
	ErrorTypeTimeout
	// ErrorTypeNotFound means the backend has no data for the request.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest means the request itself was malformed.
	ErrorTypeInvalidRequest
	// ErrorTypeNetwork is a transport-level failure.
	ErrorTypeNetwork
	// ErrorTypeBadPayload means the response body could not be decoded.
	ErrorTypeBadPayload
)

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient enough that another
// attempt against the same backend can succeed. Quota and invalid-request
// failures never recover within a run.
func Retryable(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		switch geoErr.Type {
		case ErrorTypeQuotaExceeded, ErrorTypeInvalidRequest, ErrorTypeNotFound:
			return false
		default:
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset")
}

// IsRateLimitError reports whether the error is a rate-limit rejection.
func IsRateLimitError(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsTimeoutError reports whether the error is a timeout.
func IsTimeoutError(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeTimeout
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// ClassifyHTTPStatus maps a non-2xx HTTP status to a GeocodingError.
func ClassifyHTTPStatus(statusCode int) *GeocodingError {
	switch statusCode {
	case http.StatusTooManyRequests:
		return &GeocodingError{
			Type:    ErrorTypeRateLimit,
			Message: "rate limit reached",
		}
	case http.StatusForbidden:
		return &GeocodingError{
			Type:    ErrorTypeQuotaExceeded,
			Message: "quota exceeded or access denied",
		}
	case http.StatusBadRequest:
		return &GeocodingError{
			Type:    ErrorTypeInvalidRequest,
			Message: "invalid request",
		}
	case http.StatusNotFound:
		return &GeocodingError{
			Type:    ErrorTypeNotFound,
			Message: "not found",
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &GeocodingError{
			Type:    ErrorTypeNetwork,
			Message: fmt.Sprintf("service unavailable (status %d)", statusCode),
		}
	default:
		return &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}
