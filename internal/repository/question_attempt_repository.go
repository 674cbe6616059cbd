package repository

import (
	"time"

	"github.com/mvtrinh/examgate/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestionAttemptRepository interface {
	// UpsertIfAttemptOpen writes the answer iff the owning attempt has not
	// completed. The attempt row is touched with a conditional update inside
	// the same transaction, so a save racing a completion either lands before
	// the transition or is rejected; it reports whether the answer was saved.
	UpsertIfAttemptOpen(answer *model.QuestionAttempt) (bool, error)
	FindByAttemptID(attemptID uint) ([]model.QuestionAttempt, error)
}

type questionAttemptRepository struct {
	db *gorm.DB
}

func NewQuestionAttemptRepository(db *gorm.DB) QuestionAttemptRepository {
	return &questionAttemptRepository{db: db}
}

func (r *questionAttemptRepository) UpsertIfAttemptOpen(answer *model.QuestionAttempt) (bool, error) {
	saved := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// The guarded update takes a row lock on the attempt; if another
		// transaction completed it first, zero rows match and the save is
		// dropped without touching question_attempts.
		res := tx.Model(&model.ExamAttempt{}).
			Where("id = ? AND completed_at IS NULL", answer.AttemptID).
			Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"selected_option_id", "is_correct", "time_spent_sec", "answered_at", "updated_at",
			}),
		}).Create(answer).Error; err != nil {
			return err
		}
		saved = true
		return nil
	})
	return saved, err
}

func (r *questionAttemptRepository) FindByAttemptID(attemptID uint) ([]model.QuestionAttempt, error) {
	var answers []model.QuestionAttempt
	err := r.db.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}
