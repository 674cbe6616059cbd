// Package client is the exam-taking SDK: it keeps every selected answer in
// durable local storage first, syncs it to the server with debounce and
// bounded backoff, and runs the attempt countdown against a persisted
// absolute deadline.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Terminal failures: retrying cannot help until the user or server state
// changes. The answer stays in local storage either way.
var (
	ErrAuthExpired      = errors.New("authentication expired, re-login required")
	ErrAttemptCompleted = errors.New("attempt already completed")
	ErrForbidden        = errors.New("access denied")
)

// TransientError marks a failure that is expected to succeed on retry, such
// as a dropped connection or a 5xx response.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err may be retried with backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

type Attempt struct {
	ID          uint       `json:"id"`
	ExamID      uint       `json:"exam_id"`
	UserID      uint       `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Passed      bool       `json:"passed"`
	TimedOut    bool       `json:"timed_out"`
}

type StartAttemptResult struct {
	Attempt Attempt `json:"attempt"`
	Status  string  `json:"status"` // "new" or "resumed"
}

type SubmitResult struct {
	AttemptID   uint      `json:"attempt_id"`
	Score       float64   `json:"score"`
	Passed      bool      `json:"passed"`
	TimedOut    bool      `json:"timed_out"`
	CompletedAt time.Time `json:"completed_at"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// APIClient talks to the attempt endpoints with a bearer token.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken replaces the bearer token, used after re-authentication.
func (c *APIClient) SetToken(token string) {
	c.token = token
}

func (c *APIClient) StartAttempt(ctx context.Context, examID uint) (*StartAttemptResult, error) {
	var result StartAttemptResult
	path := fmt.Sprintf("/exams/%d/attempts", examID)
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) SaveAnswer(ctx context.Context, attemptID, questionID, optionID uint) error {
	body := map[string]uint{
		"question_id":        questionID,
		"selected_option_id": optionID,
	}
	path := fmt.Sprintf("/attempts/%d/answers", attemptID)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

func (c *APIClient) Submit(ctx context.Context, attemptID uint) (*SubmitResult, error) {
	var result SubmitResult
	path := fmt.Sprintf("/attempts/%d/submit", attemptID)
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response at all: the network layer failed.
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	var apiErr apiError
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	return classifyStatus(resp.StatusCode, apiErr)
}

func classifyStatus(status int, apiErr apiError) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuthExpired
	case status == http.StatusConflict:
		return ErrAttemptCompleted
	case status == http.StatusForbidden:
		if apiErr.Message != "" {
			return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
		}
		return ErrForbidden
	case status >= 500:
		return &TransientError{Err: fmt.Errorf("server error %d: %s", status, apiErr.Message)}
	default:
		return fmt.Errorf("request failed with status %d: %s", status, apiErr.Message)
	}
}
