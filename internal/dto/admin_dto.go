package dto

import "time"

type CourseCreateDTO struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description,omitempty"`
}

type CourseResponseDTO struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChapterCreateDTO struct {
	CourseID      uint   `json:"course_id" binding:"required"`
	Title         string `json:"title" binding:"required"`
	OrderInCourse int    `json:"order_in_course" binding:"required,min=1"`
}

type ChapterResponseDTO struct {
	ID            uint   `json:"id"`
	CourseID      uint   `json:"course_id"`
	Title         string `json:"title"`
	OrderInCourse int    `json:"order_in_course"`
}

// OptionCreateDTO is used within QuestionCreateDTO for admin exam creation.
type OptionCreateDTO struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionCreateDTO struct {
	Text        string            `json:"text" binding:"required"`
	Points      float64           `json:"points" binding:"required,gt=0"`
	OrderInExam int               `json:"order_in_exam" binding:"required,min=1"`
	Options     []OptionCreateDTO `json:"options" binding:"required,min=2,dive"`
}

// ExamCreateDTO creates an exam with all of its questions in one request.
type ExamCreateDTO struct {
	ChapterID        uint                `json:"chapter_id" binding:"required"`
	Title            string              `json:"title" binding:"required"`
	Description      string              `json:"description,omitempty"`
	TimeLimitMinutes int                 `json:"time_limit_minutes" binding:"omitempty,min=0"`
	MaxAttempts      int                 `json:"max_attempts" binding:"omitempty,min=0"`
	PassingScore     float64             `json:"passing_score" binding:"required,gt=0,lte=100"`
	Questions        []QuestionCreateDTO `json:"questions" binding:"required,min=1,dive"`
}

type EnrollmentCreateDTO struct {
	UserID   uint `json:"user_id" binding:"required"`
	CourseID uint `json:"course_id" binding:"required"`
}
