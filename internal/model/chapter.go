package model

import (
	"time"

	"gorm.io/gorm"
)

type Chapter struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	CourseID      uint           `json:"course_id" gorm:"not null;index"`
	Course        Course         `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	Title         string         `json:"title" gorm:"not null"`
	OrderInCourse int            `json:"order_in_course" gorm:"not null"`
	Exams         []Exam         `json:"exams,omitempty" gorm:"foreignKey:ChapterID"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
