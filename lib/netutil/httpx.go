// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers shared by the messaging
// and gateway clients.
//
// Response helpers bound all body reads at MaxResponseSize to prevent
// unbounded memory allocation from a misbehaving server. They are for
// JSON API responses — media downloads enforce their own byte cap in
// the messaging client.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize is the bound on JSON API response body reads: 64 MB.
// This exists solely to prevent a pathological response from
// exhausting memory. Legitimate API responses are orders of magnitude
// smaller; the limit is generous so it never interferes with normal
// operation.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON API response body (up to MaxResponseSize
// bytes) and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body and returns it as a
// string for diagnostic error messages. Read errors are silently
// ignored — a partial or empty body is still useful in an error
// message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
