package model

import (
	"time"

	"gorm.io/gorm"
)

// ExamAttempt is one student's run through one exam. An attempt with a nil
// CompletedAt is in progress; at most one such row may exist per (user, exam).
// Once CompletedAt is set the row is immutable.
type ExamAttempt struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	ExamID      uint              `json:"exam_id" gorm:"not null;index"`
	Exam        Exam              `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	UserID      uint              `json:"user_id" gorm:"not null;index"`
	StartedAt   time.Time         `json:"started_at" gorm:"not null"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" gorm:"index"`
	Score       *float64          `json:"score,omitempty"` // percent
	Passed      bool              `json:"passed" gorm:"default:false"`
	TimedOut    bool              `json:"timed_out" gorm:"default:false"`
	Answers     []QuestionAttempt `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (a *ExamAttempt) IsCompleted() bool {
	return a.CompletedAt != nil
}
