// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// MXCURI is a validated Matrix content URI
// (e.g., "mxc://example.org/GCmhgzMPRjqgpODLsNQzVuHZ").
//
// Content URIs reference uploaded media in the homeserver's media
// repository. They arrive in m.file message content and are resolved
// to download paths by the messaging client. The format is
// "mxc://<server-name>/<media-id>".
//
// MXCURI is an immutable value type. The zero value is not valid;
// use IsZero to check.
type MXCURI struct {
	server  string
	mediaID string
}

// ParseMXCURI validates and splits a raw mxc:// URI string.
func ParseMXCURI(raw string) (MXCURI, error) {
	const prefix = "mxc://"
	if raw == "" {
		return MXCURI{}, fmt.Errorf("empty content URI")
	}
	if !strings.HasPrefix(raw, prefix) {
		return MXCURI{}, fmt.Errorf("content URI must start with %q: %q", prefix, raw)
	}
	rest := raw[len(prefix):]
	slashIndex := strings.IndexByte(rest, '/')
	if slashIndex < 0 {
		return MXCURI{}, fmt.Errorf("content URI missing media ID: %q", raw)
	}
	server := rest[:slashIndex]
	mediaID := rest[slashIndex+1:]
	if server == "" {
		return MXCURI{}, fmt.Errorf("content URI has empty server name: %q", raw)
	}
	if mediaID == "" || strings.ContainsRune(mediaID, '/') {
		return MXCURI{}, fmt.Errorf("content URI has invalid media ID: %q", raw)
	}
	return MXCURI{server: server, mediaID: mediaID}, nil
}

// String returns the full mxc:// URI string.
func (m MXCURI) String() string {
	if m.server == "" {
		return ""
	}
	return "mxc://" + m.server + "/" + m.mediaID
}

// IsZero reports whether the MXCURI is the zero value (uninitialized).
func (m MXCURI) IsZero() bool { return m.server == "" }

// Server returns the homeserver portion of the URI.
func (m MXCURI) Server() string { return m.server }

// MediaID returns the opaque media identifier portion of the URI.
func (m MXCURI) MediaID() string { return m.mediaID }

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// URI format. An empty input produces the zero value.
func (m *MXCURI) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*m = MXCURI{}
		return nil
	}
	parsed, err := ParseMXCURI(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m MXCURI) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
