package repository

import (
	"github.com/mvtrinh/examgate/internal/model"
	"gorm.io/gorm"
)

type QuestionRepository interface {
	// FindPageByExamID returns one page of an exam's questions in exam order,
	// plus the total count for pagination.
	FindPageByExamID(examID uint, offset, limit int) ([]model.Question, int64, error)
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) FindPageByExamID(examID uint, offset, limit int) ([]model.Question, int64, error) {
	var total int64
	if err := r.db.Model(&model.Question{}).
		Where("exam_id = ?", examID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var questions []model.Question
	if err := r.db.Where("exam_id = ?", examID).
		Preload("Options").
		Order("order_in_exam ASC").
		Offset(offset).
		Limit(limit).
		Find(&questions).Error; err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}
