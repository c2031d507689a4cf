// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway talks to the downstream question-answering and
// ingestion service.
//
// Ask never surfaces a hard failure to its caller: every error path
// (timeout, oversized payload, non-200 status, malformed response)
// degrades to a user-facing text so the bot always has something to
// put in the room. Ingest is the exception: it is invoked by an
// explicit operator command, so its errors are returned and reported
// verbatim.
package gateway
