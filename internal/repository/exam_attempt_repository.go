package repository

import (
	"errors"
	"time"

	"github.com/mvtrinh/examgate/internal/model"
	"gorm.io/gorm"
)

type ExamAttemptRepository interface {
	Create(attempt *model.ExamAttempt) error
	FindByID(id uint) (*model.ExamAttempt, error)
	FindByIDWithDetails(id uint) (*model.ExamAttempt, error)
	// FindInProgress returns the open attempt for (user, exam), or nil when
	// there is none.
	FindInProgress(examID, userID uint) (*model.ExamAttempt, error)
	CountCompleted(examID, userID uint) (int64, error)
	FindAllByExamAndUser(examID, userID uint) ([]model.ExamAttempt, error)
	// FindInProgressWithExam feeds the deadline sweeper.
	FindInProgressWithExam() ([]model.ExamAttempt, error)
	// CompleteIfOpen performs the completion transition as a single
	// conditional update guarded by completed_at IS NULL. It reports whether
	// this call won the transition; false means the attempt was already
	// completed and nothing was written.
	CompleteIfOpen(id uint, completedAt time.Time, score float64, passed, timedOut bool) (bool, error)
}

type examAttemptRepository struct {
	db *gorm.DB
}

func NewExamAttemptRepository(db *gorm.DB) ExamAttemptRepository {
	return &examAttemptRepository{db: db}
}

func (r *examAttemptRepository) Create(attempt *model.ExamAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *examAttemptRepository) FindByID(id uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.db.First(&attempt, id).Error
	return &attempt, err
}

func (r *examAttemptRepository) FindByIDWithDetails(id uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.db.
		Preload("Exam").
		Preload("Exam.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_in_exam ASC")
		}).
		Preload("Exam.Questions.Options").
		Preload("Answers").
		First(&attempt, id).Error
	return &attempt, err
}

func (r *examAttemptRepository) FindInProgress(examID, userID uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.db.
		Where("exam_id = ? AND user_id = ? AND completed_at IS NULL", examID, userID).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *examAttemptRepository) CountCompleted(examID, userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.ExamAttempt{}).
		Where("exam_id = ? AND user_id = ? AND completed_at IS NOT NULL", examID, userID).
		Count(&count).Error
	return count, err
}

func (r *examAttemptRepository) FindAllByExamAndUser(examID, userID uint) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.db.
		Where("exam_id = ? AND user_id = ?", examID, userID).
		Order("started_at DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *examAttemptRepository) FindInProgressWithExam() ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.db.
		Where("completed_at IS NULL").
		Preload("Exam").
		Find(&attempts).Error
	return attempts, err
}

func (r *examAttemptRepository) CompleteIfOpen(id uint, completedAt time.Time, score float64, passed, timedOut bool) (bool, error) {
	res := r.db.Model(&model.ExamAttempt{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"completed_at": completedAt,
			"score":        score,
			"passed":       passed,
			"timed_out":    timedOut,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
