package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AttemptState is the locally persisted record for one attempt: the absolute
// deadline (so reloads agree on the same countdown) and the answers not yet
// confirmed by the server.
type AttemptState struct {
	Deadline *time.Time    `json:"deadline,omitempty"`
	Pending  map[uint]uint `json:"pending"`
}

// AttemptStore is a file-backed JSON store keyed by attempt ID. It is the
// durable fallback for answers: a selection is written here before any
// network call, and removed only once the server confirms it.
type AttemptStore struct {
	filename string
	mu       sync.Mutex
}

func NewAttemptStore(filename string) *AttemptStore {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		initial := make(map[uint]AttemptState)
		data, _ := json.Marshal(initial)
		_ = os.WriteFile(filename, data, 0644)
	}
	return &AttemptStore{filename: filename}
}

func (s *AttemptStore) load() (map[uint]AttemptState, error) {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", s.filename, err)
	}
	if len(data) == 0 {
		return make(map[uint]AttemptState), nil
	}
	var m map[uint]AttemptState
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return m, nil
}

func (s *AttemptStore) save(m map[uint]AttemptState) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(s.filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", s.filename, err)
	}
	return nil
}

// SetPending records a selection that has not been confirmed by the server
// yet. A later selection for the same question overwrites the earlier one.
func (s *AttemptStore) SetPending(attemptID, questionID, optionID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	state := m[attemptID]
	if state.Pending == nil {
		state.Pending = make(map[uint]uint)
	}
	state.Pending[questionID] = optionID
	m[attemptID] = state
	return s.save(m)
}

// ClearPendingIf removes the pending entry for a question only while it still
// holds optionID. It reports whether the entry was removed, so a caller that
// just confirmed optionID with the server leaves a selection made in the
// meantime untouched.
func (s *AttemptStore) ClearPendingIf(attemptID, questionID, optionID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return false, err
	}
	state, ok := m[attemptID]
	if !ok {
		return false, nil
	}
	if current, ok := state.Pending[questionID]; !ok || current != optionID {
		return false, nil
	}
	delete(state.Pending, questionID)
	m[attemptID] = state
	if err := s.save(m); err != nil {
		return false, err
	}
	return true, nil
}

// Pending returns a copy of the unsynced answers for an attempt.
func (s *AttemptStore) Pending(attemptID uint) (map[uint]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[uint]uint, len(m[attemptID].Pending))
	for q, o := range m[attemptID].Pending {
		out[q] = o
	}
	return out, nil
}

func (s *AttemptStore) SetDeadline(attemptID uint, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	state := m[attemptID]
	state.Deadline = &deadline
	if state.Pending == nil {
		state.Pending = make(map[uint]uint)
	}
	m[attemptID] = state
	return s.save(m)
}

func (s *AttemptStore) Deadline(attemptID uint) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return time.Time{}, false, err
	}
	state, ok := m[attemptID]
	if !ok || state.Deadline == nil {
		return time.Time{}, false, nil
	}
	return *state.Deadline, true, nil
}

func (s *AttemptStore) ClearDeadline(attemptID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	state, ok := m[attemptID]
	if !ok {
		return nil
	}
	state.Deadline = nil
	m[attemptID] = state
	return s.save(m)
}

// ClearAttempt drops all local state for an attempt, used after a successful
// submit or an explicit abandon.
func (s *AttemptStore) ClearAttempt(attemptID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	delete(m, attemptID)
	return s.save(m)
}
