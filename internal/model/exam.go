package model

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	ChapterID   uint    `json:"chapter_id" gorm:"not null;index"`
	Chapter     Chapter `json:"chapter,omitempty" gorm:"foreignKey:ChapterID"`
	Title       string  `json:"title" gorm:"not null"`
	Description string  `json:"description,omitempty"`
	// TimeLimitMinutes of 0 means the exam is untimed.
	TimeLimitMinutes int `json:"time_limit_minutes" gorm:"default:0"`
	// MaxAttempts of 0 means unlimited attempts.
	MaxAttempts  int            `json:"max_attempts" gorm:"default:0"`
	PassingScore float64        `json:"passing_score" gorm:"default:70"` // percent
	Questions    []Question     `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Deadline returns the wall-clock cutoff for an attempt started at the given
// time, and whether the exam has a time limit at all.
func (e *Exam) Deadline(startedAt time.Time) (time.Time, bool) {
	if e.TimeLimitMinutes <= 0 {
		return time.Time{}, false
	}
	return startedAt.Add(time.Duration(e.TimeLimitMinutes) * time.Minute), true
}
