// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot contains the event loop that bridges Matrix rooms to
// the downstream answering service: the sync loop, the event router,
// the command processor, per-room session tracking, the pending
// attachment cache, and the resilient outbound sender.
package bot
