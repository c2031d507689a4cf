// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API for the bridge
// bot's needs.
//
// The package provides two core types. [Client] is an unauthenticated
// Matrix client holding the homeserver URL and HTTP transport; its
// Login method authenticates with password and returns a [Session].
//
// [Session] wraps the Client with an access token for authenticated
// operations: incremental sync with long-polling, room join, message
// send (idempotent transactional PUT, plus a legacy query-parameter
// fallback path for when the primary path is refused), capped media
// download, device listing, and identity verification (WhoAmI). The
// access token lives in mmap-backed secret.Buffer memory; callers must
// Close the Session to release it.
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_LIMIT_EXCEEDED, etc.) and HTTP
// status code. [IsMatrixError] tests for a specific code. Request URLs
// are built by string concatenation with url.PathEscape per segment
// rather than url.URL, avoiding double-encoding of path segments that
// contain encoded characters (room IDs contain '!' and ':').
package messaging
