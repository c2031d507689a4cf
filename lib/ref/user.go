// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// UserID is a validated Matrix user ID (e.g., "@helper:example.org").
//
// A Matrix user ID always starts with '@' and contains a ':' separating
// the localpart from the server name. The type validates the structural
// format only — any homeserver's accounts are accepted.
//
// UserID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw Matrix user ID string.
// Returns an error if the string is empty, doesn't start with '@',
// has an empty localpart, or is missing the ':server' suffix.
func ParseUserID(raw string) (UserID, error) {
	if _, _, err := splitMatrixID(raw, '@'); err != nil {
		return UserID{}, err
	}
	return UserID{id: raw}, nil
}

// MustParseUserID is like ParseUserID but panics on error. Use in tests
// where the input is known-valid.
func MustParseUserID(raw string) UserID {
	u, err := ParseUserID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUserID(%q): %v", raw, err))
	}
	return u
}

// String returns the full user ID string (e.g., "@helper:example.org").
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value (uninitialized).
func (u UserID) IsZero() bool { return u.id == "" }

// Localpart returns the localpart portion of the user ID (without the
// '@' prefix or ':server' suffix). Panics on a zero-value UserID.
func (u UserID) Localpart() string {
	localpart, _, err := splitMatrixID(u.id, '@')
	if err != nil {
		panic(fmt.Sprintf("UserID.Localpart on invalid value %q: %v", u.id, err))
	}
	return localpart
}

// Server returns the server portion of the user ID (after the ':').
// Panics on a zero-value UserID.
func (u UserID) Server() string {
	_, server, err := splitMatrixID(u.id, '@')
	if err != nil {
		panic(fmt.Sprintf("UserID.Server on invalid value %q: %v", u.id, err))
	}
	return server
}

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	if u.id == "" {
		return []byte{}, nil
	}
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// user ID format. An empty input produces the zero value.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// splitMatrixID splits a sigil-prefixed Matrix identifier into its
// localpart and server name. The sigil is '@' for user IDs and '!'
// for room IDs.
func splitMatrixID(raw string, sigil byte) (localpart, server string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("empty identifier")
	}
	if raw[0] != sigil {
		return "", "", fmt.Errorf("identifier must start with %q: %q", string(sigil), raw)
	}
	rest := raw[1:]
	colonIndex := strings.IndexByte(rest, ':')
	if colonIndex < 0 {
		return "", "", fmt.Errorf("identifier missing ':server' suffix: %q", raw)
	}
	localpart = rest[:colonIndex]
	server = rest[colonIndex+1:]
	if localpart == "" {
		return "", "", fmt.Errorf("identifier has empty localpart: %q", raw)
	}
	if server == "" {
		return "", "", fmt.Errorf("identifier has empty server name: %q", raw)
	}
	return localpart, server, nil
}
