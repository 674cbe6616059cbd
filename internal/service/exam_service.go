package service

import (
	"errors"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mvtrinh/examgate/internal/dto"
	"github.com/mvtrinh/examgate/internal/repository"
)

type ExamService interface {
	GetAllExams() ([]dto.ExamSummaryDTO, error)
	GetExamDetails(examID uint) (*dto.ExamResponseDTO, error)
	GetExamQuestions(examID uint, page, pageSize int) (*dto.QuestionPageDTO, error)
}

type examService struct {
	examRepo     repository.ExamRepository
	questionRepo repository.QuestionRepository
}

func NewExamService(examRepo repository.ExamRepository, questionRepo repository.QuestionRepository) ExamService {
	return &examService{examRepo: examRepo, questionRepo: questionRepo}
}

func (s *examService) GetAllExams() ([]dto.ExamSummaryDTO, error) {
	examsWithCount, err := s.examRepo.FindAllWithQuestionCount()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list exams")
		return nil, fmt.Errorf("error fetching exams: %w", err)
	}

	var dtos []dto.ExamSummaryDTO
	for _, ewc := range examsWithCount {
		dtos = append(dtos, dto.ExamSummaryDTO{
			ID:               ewc.Exam.ID,
			ChapterID:        ewc.Exam.ChapterID,
			Title:            ewc.Exam.Title,
			Description:      ewc.Exam.Description,
			TimeLimitMinutes: ewc.Exam.TimeLimitMinutes,
			MaxAttempts:      ewc.Exam.MaxAttempts,
			PassingScore:     ewc.Exam.PassingScore,
			QuestionCount:    ewc.QuestionCount,
			CreatedAt:        ewc.Exam.CreatedAt,
		})
	}
	return dtos, nil
}

func (s *examService) GetExamDetails(examID uint) (*dto.ExamResponseDTO, error) {
	exam, err := s.examRepo.FindByIDWithQuestions(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("loading exam %d: %w", examID, err)
	}

	// OptionResponseDTO carries no correctness flag, so copier strips the
	// answer key from the payload served to takers.
	var resp dto.ExamResponseDTO
	if err := copier.Copy(&resp, exam); err != nil {
		return nil, fmt.Errorf("preparing exam response: %w", err)
	}
	return &resp, nil
}

const defaultQuestionPageSize = 10

// GetExamQuestions returns one page of an exam's questions in exam order.
// Page numbering starts at 1; out-of-range sizes fall back to the default.
func (s *examService) GetExamQuestions(examID uint, page, pageSize int) (*dto.QuestionPageDTO, error) {
	if _, err := s.examRepo.FindByID(examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("loading exam %d: %w", examID, err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultQuestionPageSize
	}

	questions, total, err := s.questionRepo.FindPageByExamID(examID, (page-1)*pageSize, pageSize)
	if err != nil {
		log.Error().Err(err).Uint("exam_id", examID).Msg("Failed to page exam questions")
		return nil, fmt.Errorf("fetching questions for exam %d: %w", examID, err)
	}

	questionDTOs := make([]dto.QuestionResponseDTO, 0, len(questions))
	if err := copier.Copy(&questionDTOs, questions); err != nil {
		return nil, fmt.Errorf("preparing question page: %w", err)
	}

	return &dto.QuestionPageDTO{
		Questions:  questionDTOs,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}
