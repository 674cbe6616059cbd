package dto

import "time"

type UserResponseDTO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type AuthResponseDTO struct {
	Token string          `json:"token"`
	User  UserResponseDTO `json:"user"`
}

// OptionResponseDTO deliberately omits the correctness flag; exam payloads are
// served to students with open attempts.
type OptionResponseDTO struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type QuestionResponseDTO struct {
	ID          uint                `json:"id"`
	ExamID      uint                `json:"exam_id"`
	Text        string              `json:"text"`
	Points      float64             `json:"points"`
	OrderInExam int                 `json:"order_in_exam"`
	Options     []OptionResponseDTO `json:"options,omitempty"`
}

type ExamSummaryDTO struct {
	ID               uint      `json:"id"`
	ChapterID        uint      `json:"chapter_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	MaxAttempts      int       `json:"max_attempts"`
	PassingScore     float64   `json:"passing_score"`
	QuestionCount    int       `json:"question_count"`
	CreatedAt        time.Time `json:"created_at"`
}

type ExamResponseDTO struct {
	ID               uint                  `json:"id"`
	ChapterID        uint                  `json:"chapter_id"`
	Title            string                `json:"title"`
	Description      string                `json:"description,omitempty"`
	TimeLimitMinutes int                   `json:"time_limit_minutes"`
	MaxAttempts      int                   `json:"max_attempts"`
	PassingScore     float64               `json:"passing_score"`
	Questions        []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// QuestionPageDTO delivers one page of an exam's questions so long exams can
// be fetched incrementally.
type QuestionPageDTO struct {
	Questions  []QuestionResponseDTO `json:"questions"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalCount int64                 `json:"total_count"`
}

// StartAttemptResponseDTO reports whether the call opened a fresh attempt or
// handed back an in-progress one.
type StartAttemptResponseDTO struct {
	Attempt AttemptSummaryDTO `json:"attempt"`
	Status  string            `json:"status"` // "new" or "resumed"
}

type AttemptSummaryDTO struct {
	ID          uint       `json:"id"`
	ExamID      uint       `json:"exam_id"`
	UserID      uint       `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Passed      bool       `json:"passed"`
	TimedOut    bool       `json:"timed_out"`
}

type AnswerDetailDTO struct {
	QuestionID       uint      `json:"question_id"`
	SelectedOptionID uint      `json:"selected_option_id"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSec     int       `json:"time_spent_sec"`
	AnsweredAt       time.Time `json:"answered_at"`
	Explanation      string    `json:"explanation,omitempty"`
}

type AttemptDetailDTO struct {
	ID          uint              `json:"id"`
	ExamID      uint              `json:"exam_id"`
	ExamTitle   string            `json:"exam_title,omitempty"`
	UserID      uint              `json:"user_id"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Score       *float64          `json:"score,omitempty"`
	Passed      bool              `json:"passed"`
	TimedOut    bool              `json:"timed_out"`
	Answers     []AnswerDetailDTO `json:"answers,omitempty"`
}

// SubmitResultDTO is the terminal state of an attempt; repeated submits return
// it unchanged.
type SubmitResultDTO struct {
	AttemptID   uint      `json:"attempt_id"`
	Score       float64   `json:"score"`
	Passed      bool      `json:"passed"`
	TimedOut    bool      `json:"timed_out"`
	CompletedAt time.Time `json:"completed_at"`
}

type AttemptStatsDTO struct {
	AttemptCount      int      `json:"attempt_count"`
	BestScore         *float64 `json:"best_score,omitempty"`
	AverageScore      *float64 `json:"average_score,omitempty"`
	RemainingAttempts *int     `json:"remaining_attempts,omitempty"` // nil when unlimited
	HasPassedAttempt  bool     `json:"has_passed_attempt"`
}

type AttemptHistoryDTO struct {
	Attempts []AttemptSummaryDTO `json:"attempts"`
	Stats    AttemptStatsDTO     `json:"stats"`
}

type SaveAnswerResponseDTO struct {
	QuestionID       uint `json:"question_id"`
	SelectedOptionID uint `json:"selected_option_id"`
	IsCorrect        bool `json:"-"` // never serialized to the taker
	Saved            bool `json:"saved"`
}
