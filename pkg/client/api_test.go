package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_SaveAnswerSendsBearerAndBody(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]uint

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"question_id":5,"selected_option_id":9,"saved":true}`))
	}))
	defer srv.Close()

	api := NewAPIClient(srv.URL, "tok123")
	err := api.SaveAnswer(context.Background(), 3, 5, 9)
	require.NoError(t, err)

	assert.Equal(t, "/attempts/3/answers", gotPath)
	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, uint(5), gotBody["question_id"])
	assert.Equal(t, uint(9), gotBody["selected_option_id"])
}

func TestAPIClient_ClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		check     func(t *testing.T, err error)
	}{
		{
			name:   "401 is auth expired",
			status: http.StatusUnauthorized,
			body:   `{"message":"token expired","code":"auth_expired"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAuthExpired)
				assert.False(t, IsTransient(err))
			},
		},
		{
			name:   "409 is attempt completed",
			status: http.StatusConflict,
			body:   `{"message":"attempt already completed","code":"attempt_already_completed"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrAttemptCompleted)
				assert.False(t, IsTransient(err))
			},
		},
		{
			name:   "403 is forbidden",
			status: http.StatusForbidden,
			body:   `{"message":"no access to chapter \"Algebra\""}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrForbidden)
				assert.Contains(t, err.Error(), "Algebra")
			},
		},
		{
			name:   "500 is transient",
			status: http.StatusInternalServerError,
			body:   `{"message":"boom"}`,
			check: func(t *testing.T, err error) {
				assert.True(t, IsTransient(err))
			},
		},
		{
			name:   "422 is terminal but untyped",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":"question does not belong to this exam"}`,
			check: func(t *testing.T, err error) {
				assert.False(t, IsTransient(err))
				assert.NotErrorIs(t, err, ErrAuthExpired)
				assert.NotErrorIs(t, err, ErrAttemptCompleted)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			api := NewAPIClient(srv.URL, "tok")
			err := api.SaveAnswer(context.Background(), 1, 2, 3)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestAPIClient_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	api := NewAPIClient(srv.URL, "tok")
	err := api.SaveAnswer(context.Background(), 1, 2, 3)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestAPIClient_StartAndSubmitDecode(t *testing.T) {
	started := time.Now().UTC().Truncate(time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/exams/4/attempts":
			resp := StartAttemptResult{
				Attempt: Attempt{ID: 11, ExamID: 4, UserID: 2, StartedAt: started},
				Status:  "resumed",
			}
			_ = json.NewEncoder(w).Encode(resp)
		case "/attempts/11/submit":
			resp := SubmitResult{AttemptID: 11, Score: 87.5, Passed: true, CompletedAt: started.Add(time.Hour)}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	api := NewAPIClient(srv.URL, "tok")

	start, err := api.StartAttempt(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, uint(11), start.Attempt.ID)
	assert.Equal(t, "resumed", start.Status)
	assert.True(t, start.Attempt.StartedAt.Equal(started))

	result, err := api.Submit(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, uint(11), result.AttemptID)
	assert.InDelta(t, 87.5, result.Score, 0.001)
	assert.True(t, result.Passed)
}
