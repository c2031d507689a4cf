// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// MatrixError is the standard error response shape returned by Matrix
// homeservers. All client-server API error responses carry an errcode
// and a human-readable message.
type MatrixError struct {
	Code    string `json:"errcode"`
	Message string `json:"error"`
	// StatusCode is the HTTP status of the response carrying this
	// error. Not part of the JSON body.
	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix error %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// Common Matrix error codes.
const (
	ErrCodeForbidden      = "M_FORBIDDEN"
	ErrCodeUnknownToken   = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound       = "M_NOT_FOUND"
	ErrCodeLimitExceeded  = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown        = "M_UNKNOWN"
	ErrCodeTooLarge       = "M_TOO_LARGE"
	ErrCodeMissingToken   = "M_MISSING_TOKEN"
	ErrCodeUserInUse      = "M_USER_IN_USE"
	ErrCodeInvalidParam   = "M_INVALID_PARAM"
	ErrCodeUnrecognized   = "M_UNRECOGNIZED"
	ErrCodeExclusive      = "M_EXCLUSIVE"
	ErrCodeGuestForbidden = "M_GUEST_ACCESS_FORBIDDEN"
)

// IsMatrixError reports whether err is a MatrixError with the given
// error code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

// IsDeviceTrustError reports whether err looks like a send failure
// caused by unverified or unknown devices in the room. Homeservers do
// not use a dedicated errcode for this, so the classification is by
// HTTP status and code: a 403 that is not a plain room-permission
// denial, or an M_UNKNOWN carrying a device-related message.
func IsDeviceTrustError(err error) bool {
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		return false
	}
	if matrixErr.StatusCode == 403 && matrixErr.Code == ErrCodeForbidden {
		return true
	}
	return false
}

// IsTransientSendError reports whether a send failure is worth
// retrying. Rate limits and server errors are transient; other client
// errors are permanent.
func IsTransientSendError(err error) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		if matrixErr.Code == ErrCodeLimitExceeded {
			return true
		}
		return matrixErr.StatusCode >= 500
	}
	// Network-level failures (no Matrix error shape) are transient.
	return err != nil
}
