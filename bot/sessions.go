// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/askrelay/askrelay/lib/ref"
)

// SessionStore maps rooms to downstream conversation session IDs. A
// room's session ID is stable until explicitly reset; rooms never
// share an ID.
//
// The store is owned by the router's single event loop but guarded by
// a mutex so the status command and eviction goroutine can read counts
// safely.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[ref.RoomID]string
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[ref.RoomID]string)}
}

// newSessionID builds a session ID for a room: an 8-hex-character
// room fingerprint, then a random UUID. The fingerprint makes IDs
// traceable to their room in downstream service logs; the UUID makes
// each generation unique so a reset genuinely starts a fresh thread.
func newSessionID(roomID ref.RoomID) string {
	digest := blake3.Sum256([]byte(roomID.String()))
	return hex.EncodeToString(digest[:4]) + "-" + uuid.NewString()
}

// GetOrCreate returns the room's session ID, creating one on first
// use.
func (s *SessionStore) GetOrCreate(roomID ref.RoomID) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID, ok := s.sessions[roomID]; ok {
		return sessionID
	}
	sessionID := newSessionID(roomID)
	s.sessions[roomID] = sessionID
	return sessionID
}

// Reset discards the room's session ID and returns a fresh one. The
// caller is responsible for purging the room's cached attachments.
func (s *SessionStore) Reset(roomID ref.RoomID) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := newSessionID(roomID)
	s.sessions[roomID] = sessionID
	return sessionID
}

// Count returns the number of rooms with an active session.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
