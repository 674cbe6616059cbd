package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SyncStatus is the per-question answer state the UI surfaces so the student
// always knows whether their work is safe.
type SyncStatus string

const (
	StatusSynced    SyncStatus = "synced"
	StatusPending   SyncStatus = "pending"
	StatusSyncError SyncStatus = "sync-error"
	StatusOffline   SyncStatus = "offline"
)

// AnswerSaver is the server-side half of a save, satisfied by APIClient.
type AnswerSaver interface {
	SaveAnswer(ctx context.Context, attemptID, questionID, optionID uint) error
}

// AttemptSubmitter is the server-side half of a submit, satisfied by APIClient.
type AttemptSubmitter interface {
	Submit(ctx context.Context, attemptID uint) (*SubmitResult, error)
}

// SyncerConfig tunes the debounce window and the retry schedule. Zero values
// fall back to the defaults.
type SyncerConfig struct {
	Debounce          time.Duration // window in which rapid re-selections collapse to one save
	InitialRetryDelay time.Duration // first retry delay, doubled on each subsequent retry
	MaxRetries        int           // retries after the initial save attempt

	// OnStatus, when set, is called on every per-question status change.
	// It runs on the syncer's goroutine and must not call back into the
	// syncer.
	OnStatus func(questionID uint, status SyncStatus)

	// sleep is swapped out in tests to observe the retry schedule.
	sleep func(time.Duration)
}

const (
	defaultDebounce          = 400 * time.Millisecond
	defaultInitialRetryDelay = time.Second
	defaultMaxRetries        = 3
)

// AnswerSyncer pushes answer selections to the server. Every selection lands
// in the local store before any network activity, so nothing is lost on
// crash, reload, or sync failure. Within a debounce window only the last
// selection for a question is sent.
type AnswerSyncer struct {
	api       AnswerSaver
	store     *AttemptStore
	attemptID uint
	cfg       SyncerConfig

	mu       sync.Mutex
	online   bool
	statuses map[uint]SyncStatus
	timers   map[uint]*time.Timer
}

func NewAnswerSyncer(api AnswerSaver, store *AttemptStore, attemptID uint, cfg SyncerConfig) *AnswerSyncer {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.InitialRetryDelay <= 0 {
		cfg.InitialRetryDelay = defaultInitialRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.sleep == nil {
		cfg.sleep = time.Sleep
	}
	return &AnswerSyncer{
		api:       api,
		store:     store,
		attemptID: attemptID,
		cfg:       cfg,
		online:    true,
		statuses:  make(map[uint]SyncStatus),
		timers:    make(map[uint]*time.Timer),
	}
}

// Select records a selection. The local write happens immediately; the
// network save is scheduled after the debounce window, and re-selecting the
// same question within the window resets it so only the final choice is sent.
func (s *AnswerSyncer) Select(questionID, optionID uint) error {
	if err := s.store.SetPending(s.attemptID, questionID, optionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.online {
		s.setStatusLocked(questionID, StatusOffline)
		return nil
	}
	s.setStatusLocked(questionID, StatusPending)

	if t, ok := s.timers[questionID]; ok {
		t.Stop()
	}
	s.timers[questionID] = time.AfterFunc(s.cfg.Debounce, func() {
		s.syncQuestion(questionID)
	})
	return nil
}

// Status returns the last surfaced state for a question, defaulting to
// synced for questions the syncer has never touched.
func (s *AnswerSyncer) Status(questionID uint) SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[questionID]; ok {
		return st
	}
	return StatusSynced
}

// SetOnline switches connectivity mode. Going online flushes every locally
// pending answer in one pass.
func (s *AnswerSyncer) SetOnline(online bool) {
	s.mu.Lock()
	was := s.online
	s.online = online
	if !online {
		for q, t := range s.timers {
			t.Stop()
			delete(s.timers, q)
		}
		for q := range s.statuses {
			if s.statuses[q] == StatusPending {
				s.setStatusLocked(q, StatusOffline)
			}
		}
	}
	s.mu.Unlock()

	if online && !was {
		s.Flush()
	}
}

// Submit flushes locally pending answers, completes the attempt on the
// server, and drops the attempt's local state, including the persisted
// deadline. On failure the local state is kept so nothing is lost.
func (s *AnswerSyncer) Submit(ctx context.Context, api AttemptSubmitter) (*SubmitResult, error) {
	s.Flush()

	result, err := api.Submit(ctx, s.attemptID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for q, t := range s.timers {
		t.Stop()
		delete(s.timers, q)
	}
	s.mu.Unlock()

	if err := s.store.ClearAttempt(s.attemptID); err != nil {
		log.Warn().Err(err).Uint("attempt_id", s.attemptID).Msg("Failed to clear local attempt state")
	}
	return result, nil
}

// Flush synchronously pushes all locally pending answers to the server.
func (s *AnswerSyncer) Flush() {
	pending, err := s.store.Pending(s.attemptID)
	if err != nil {
		log.Error().Err(err).Uint("attempt_id", s.attemptID).Msg("Failed to read pending answers")
		return
	}
	for questionID := range pending {
		s.syncQuestion(questionID)
	}
}

// syncQuestion reads the latest stored selection for the question and saves
// it with bounded backoff. Reading from the store rather than capturing the
// option at schedule time is what makes the last write win.
func (s *AnswerSyncer) syncQuestion(questionID uint) {
	pending, err := s.store.Pending(s.attemptID)
	if err != nil {
		log.Error().Err(err).Uint("attempt_id", s.attemptID).Msg("Failed to read pending answers")
		return
	}
	optionID, ok := pending[questionID]
	if !ok {
		return
	}

	delay := s.cfg.InitialRetryDelay
	for try := 0; ; try++ {
		err = s.api.SaveAnswer(context.Background(), s.attemptID, questionID, optionID)
		if err == nil {
			// Clear only if the store still holds the option that was sent.
			// A selection made while the save was in flight stays pending
			// and its own debounce fire sends it.
			cleared, cerr := s.store.ClearPendingIf(s.attemptID, questionID, optionID)
			if cerr != nil {
				log.Warn().Err(cerr).Uint("question_id", questionID).Msg("Failed to clear synced answer")
			}
			if cleared {
				s.setStatus(questionID, StatusSynced)
			}
			return
		}
		if !IsTransient(err) {
			// Terminal: the answer stays in local storage, the user has
			// to act (re-authenticate, or stop writing to a closed
			// attempt) before a manual retry makes sense.
			log.Warn().Err(err).Uint("question_id", questionID).Msg("Answer save failed terminally")
			s.setStatus(questionID, StatusSyncError)
			return
		}
		if try >= s.cfg.MaxRetries {
			log.Warn().Err(err).Uint("question_id", questionID).Int("retries", try).Msg("Answer save retries exhausted")
			s.setStatus(questionID, StatusSyncError)
			return
		}
		s.setStatus(questionID, StatusPending)
		s.cfg.sleep(delay)
		delay *= 2
	}
}

func (s *AnswerSyncer) setStatus(questionID uint, status SyncStatus) {
	s.mu.Lock()
	s.setStatusLocked(questionID, status)
	s.mu.Unlock()
}

func (s *AnswerSyncer) setStatusLocked(questionID uint, status SyncStatus) {
	s.statuses[questionID] = status
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(questionID, status)
	}
}
