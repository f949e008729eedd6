package main

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ReviewSession holds the pending verification queue for one channel. The
// accepted dataset itself lives in SQLite; the session only tracks rows
// awaiting reviewer confirmation. All state is explicit and mutex-guarded so
// distinct channels can code documents in parallel.
type ReviewSession struct {
	mu      sync.Mutex
	pending []PendingRecord
}

// Enqueue normalizes and QCs each raw draft row, attaches the source text
// verbatim, and appends the results to the pending queue. Every split-case
// row carries the full original text so each remains independently auditable.
func (s *ReviewSession) Enqueue(rows []map[string]string, originalText string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, raw := range rows {
		merged := make(map[string]string, len(raw)+1)
		for k, v := range raw {
			merged[k] = v
		}
		merged["original_text"] = originalText
		rec := ApplyQC(NormalizeRecord(merged))
		s.pending = append(s.pending, PendingRecord{ID: uuid.NewString(), Record: rec})
	}
	return len(rows)
}

// Current returns the record at the head of the queue without removing it.
func (s *ReviewSession) Current() (PendingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return PendingRecord{}, false
	}
	return PendingRecord{ID: s.pending[0].ID, Record: s.pending[0].Record.Clone()}, true
}

func (s *ReviewSession) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// SetField edits one field of the current pending record. Enumerated fields
// reject out-of-domain values here — unlike the normalizer's silent
// defaulting, a human edit deserves immediate feedback.
func (s *ReviewSession) SetField(field, value string) error {
	enumerated, err := IsEnumerated(field)
	if err != nil {
		return err
	}
	if enumerated {
		allowed, _ := AllowedValues(field)
		if !containsValue(allowed, value) {
			return fmt.Errorf("invalid value %q for %s (allowed: %s)", value, field, strings.Join(allowed, " | "))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return fmt.Errorf("no pending record")
	}
	s.pending[0].Record[field] = value
	return nil
}

// Commit re-runs the full normalize+QC pipeline on the current record —
// reviewer edits are as untrusted as model output — then appends it to the
// coded dataset and advances the queue. The given ID must match the current
// head, so a stale interaction cannot commit a different record.
func (s *ReviewSession) Commit(db *sql.DB, id, codedBy string) (CodingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, fmt.Errorf("no pending record")
	}
	if id != "" && id != s.pending[0].ID {
		return nil, fmt.Errorf("pending record changed, re-check before accepting")
	}

	rec := ApplyQC(NormalizeRecord(s.pending[0].Record))
	if err := InsertCodedRecord(db, rec, codedBy); err != nil {
		return nil, err
	}
	s.pending = s.pending[1:]
	return rec, nil
}

// Discard drops the current pending record and advances the queue.
func (s *ReviewSession) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return fmt.Errorf("no pending record")
	}
	if id != "" && id != s.pending[0].ID {
		return fmt.Errorf("pending record changed, re-check before discarding")
	}
	s.pending = s.pending[1:]
	return nil
}

// Reset empties the pending queue.
func (s *ReviewSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// SessionStore hands out one ReviewSession per Slack channel.
type SessionStore struct {
	mu        sync.Mutex
	byChannel map[string]*ReviewSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byChannel: make(map[string]*ReviewSession)}
}

func (st *SessionStore) ForChannel(channelID string) *ReviewSession {
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.byChannel[channelID]
	if !ok {
		session = &ReviewSession{}
		st.byChannel[channelID] = session
	}
	return session
}
