package client

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedCall struct {
	questionID uint
	optionID   uint
}

// fakeSaver scripts the outcome of each save and records every call.
type fakeSaver struct {
	mu    sync.Mutex
	calls []savedCall
	// errs is consumed one per call; once exhausted, saves succeed.
	errs []error
}

func (f *fakeSaver) SaveAnswer(_ context.Context, _, questionID, optionID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, savedCall{questionID: questionID, optionID: optionID})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeSaver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSaver) lastCall() savedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeSaver) snapshot() []savedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedCall(nil), f.calls...)
}

// blockingSaver holds its first save open until released so a test can
// overlap a re-selection with an in-flight save.
type blockingSaver struct {
	fakeSaver
	started chan struct{}
	release chan struct{}
	first   sync.Once
}

func (b *blockingSaver) SaveAnswer(ctx context.Context, attemptID, questionID, optionID uint) error {
	blocked := false
	b.first.Do(func() { blocked = true })
	if blocked {
		close(b.started)
		<-b.release
	}
	return b.fakeSaver.SaveAnswer(ctx, attemptID, questionID, optionID)
}

type fakeSubmitter struct {
	result *SubmitResult
	err    error
	calls  int
}

func (f *fakeSubmitter) Submit(_ context.Context, _ uint) (*SubmitResult, error) {
	f.calls++
	return f.result, f.err
}

func newTestStore(t *testing.T) *AttemptStore {
	t.Helper()
	return NewAttemptStore(filepath.Join(t.TempDir(), "attempts.json"))
}

func waitStatus(t *testing.T, ch <-chan SyncStatus, want SyncStatus) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", want)
		}
	}
}

func TestSelect_DebounceSendsOnlyLastSelection(t *testing.T) {
	saver := &fakeSaver{}
	store := newTestStore(t)
	statuses := make(chan SyncStatus, 16)

	s := NewAnswerSyncer(saver, store, 7, SyncerConfig{
		Debounce: 50 * time.Millisecond,
		OnStatus: func(_ uint, st SyncStatus) { statuses <- st },
	})

	require.NoError(t, s.Select(1, 10))
	require.NoError(t, s.Select(1, 20))
	require.NoError(t, s.Select(1, 30))

	waitStatus(t, statuses, StatusSynced)

	assert.Equal(t, 1, saver.callCount())
	assert.Equal(t, savedCall{questionID: 1, optionID: 30}, saver.lastCall())

	pending, err := store.Pending(7)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, StatusSynced, s.Status(1))
}

func TestSync_RetriesWithDoublingDelaysThenGivesUp(t *testing.T) {
	transient := &TransientError{Err: errors.New("connection reset")}
	saver := &fakeSaver{errs: []error{transient, transient, transient, transient}}
	store := newTestStore(t)
	statuses := make(chan SyncStatus, 16)

	var mu sync.Mutex
	var delays []time.Duration

	s := NewAnswerSyncer(saver, store, 7, SyncerConfig{
		Debounce:          time.Millisecond,
		InitialRetryDelay: 10 * time.Millisecond,
		MaxRetries:        3,
		OnStatus:          func(_ uint, st SyncStatus) { statuses <- st },
		sleep: func(d time.Duration) {
			mu.Lock()
			delays = append(delays, d)
			mu.Unlock()
		},
	})

	require.NoError(t, s.Select(1, 10))
	waitStatus(t, statuses, StatusSyncError)

	// Initial attempt plus exactly three retries.
	assert.Equal(t, 4, saver.callCount())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delays, 3)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1])
	}
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, delays)

	// The answer survives in local storage for a manual retry.
	pending, err := store.Pending(7)
	require.NoError(t, err)
	assert.Equal(t, uint(10), pending[1])
}

func TestSync_SelectionDuringInFlightSaveIsNotLost(t *testing.T) {
	saver := &blockingSaver{started: make(chan struct{}), release: make(chan struct{})}
	store := newTestStore(t)
	statuses := make(chan SyncStatus, 16)

	s := NewAnswerSyncer(saver, store, 7, SyncerConfig{
		Debounce: 10 * time.Millisecond,
		OnStatus: func(_ uint, st SyncStatus) { statuses <- st },
	})

	require.NoError(t, s.Select(1, 10))
	// The save of option 10 is now in flight.
	<-saver.started

	// Re-selecting while the save is open must not let its completion erase
	// the newer choice.
	require.NoError(t, s.Select(1, 20))
	close(saver.release)

	waitStatus(t, statuses, StatusSynced)

	assert.Contains(t, saver.snapshot(), savedCall{questionID: 1, optionID: 20})
	pending, err := store.Pending(7)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, StatusSynced, s.Status(1))
}

func TestSubmit_FlushesPendingAndClearsLocalState(t *testing.T) {
	saver := &fakeSaver{}
	store := newTestStore(t)
	submitter := &fakeSubmitter{result: &SubmitResult{AttemptID: 7, Score: 100, Passed: true}}

	require.NoError(t, store.SetDeadline(7, time.Now().Add(time.Hour)))
	s := NewAnswerSyncer(saver, store, 7, SyncerConfig{Debounce: time.Hour})
	require.NoError(t, s.Select(1, 10))

	result, err := s.Submit(context.Background(), submitter)
	require.NoError(t, err)
	assert.Equal(t, float64(100), result.Score)
	assert.Equal(t, 1, submitter.calls)

	// The pending answer went out with the flush, not with the stale timer.
	assert.Equal(t, 1, saver.callCount())
	assert.Equal(t, savedCall{questionID: 1, optionID: 10}, saver.lastCall())

	pending, err := store.Pending(7)
	require.NoError(t, err)
	assert.Empty(t, pending)
	_, ok, err := store.Deadline(7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmit_FailureKeepsLocalState(t *testing.T) {
	transient := &TransientError{Err: errors.New("connection reset")}
	saver := &fakeSaver{errs: []error{transient, transient}}
	store := newTestStore(t)
	submitter := &fakeSubmitter{err: transient}

	s := NewAnswerSyncer(saver, store, 7, SyncerConfig{
		Debounce:   time.Hour,
		MaxRetries: 1,
		sleep:      func(time.Duration) {},
	})
	require.NoError(t, s.Select(1, 10))

	_, err := s.Submit(context.Background(), submitter)
	require.Error(t, err)

	pending, perr := store.Pending(7)
	require.NoError(t, perr)
	assert.Equal(t, uint(10), pending[1])
}

func TestSync_TerminalErrorStopsImmediately(t *testing.T) {
	saver := &fakeSaver{errs: []error{ErrAttemptCompleted}}
	store := newTestStore(t)
	statuses := make(chan SyncStatus, 16)

	s := NewAnswerSyncer(saver, store, 7, SyncerConfig{
		Debounce: time.Millisecond,
		OnStatus: func(_ uint, st SyncStatus) { statuses <- st },
		sleep: func(time.Duration) {
			t.Error("terminal failures must not be retried")
		},
	})

	require.NoError(t, s.Select(1, 10))
	waitStatus(t, statuses, StatusSyncError)

	assert.Equal(t, 1, saver.callCount())
	pending, err := store.Pending(7)
	require.NoError(t, err)
	assert.Equal(t, uint(10), pending[1])
}

func TestSync_AuthExpiredPreservesAnswer(t *testing.T) {
	saver := &fakeSaver{errs: []error{ErrAuthExpired}}
	store := newTestStore(t)
	statuses := make(chan SyncStatus, 16)

	s := NewAnswerSyncer(saver, store, 7, SyncerConfig{
		Debounce: time.Millisecond,
		OnStatus: func(_ uint, st SyncStatus) { statuses <- st },
	})

	require.NoError(t, s.Select(3, 42))
	waitStatus(t, statuses, StatusSyncError)

	pending, err := store.Pending(7)
	require.NoError(t, err)
	assert.Equal(t, uint(42), pending[3])
}

func TestOffline_QueuesLocallyAndFlushesOnReconnect(t *testing.T) {
	saver := &fakeSaver{}
	store := newTestStore(t)

	s := NewAnswerSyncer(saver, store, 7, SyncerConfig{Debounce: time.Millisecond})
	s.SetOnline(false)

	require.NoError(t, s.Select(1, 10))
	require.NoError(t, s.Select(2, 20))
	assert.Equal(t, StatusOffline, s.Status(1))
	assert.Equal(t, StatusOffline, s.Status(2))

	// Nothing goes out while offline.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, saver.callCount())

	// Reconnection flushes everything pending in one pass.
	s.SetOnline(true)

	assert.Equal(t, 2, saver.callCount())
	assert.Equal(t, StatusSynced, s.Status(1))
	assert.Equal(t, StatusSynced, s.Status(2))

	pending, err := store.Pending(7)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
