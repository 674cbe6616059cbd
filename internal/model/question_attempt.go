package model

import (
	"time"

	"gorm.io/gorm"
)

// QuestionAttempt records the selected option for one question within one
// attempt. Unique on (attempt, question): a later save overwrites the row
// rather than duplicating it.
type QuestionAttempt struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	AttemptID        uint           `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID       uint           `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	Question         Question       `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	SelectedOptionID uint           `json:"selected_option_id" gorm:"not null"`
	IsCorrect        bool           `json:"is_correct" gorm:"default:false"`
	TimeSpentSec     int            `json:"time_spent_sec" gorm:"default:0"`
	AnsweredAt       time.Time      `json:"answered_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
