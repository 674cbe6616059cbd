package service

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"

	"github.com/mvtrinh/examgate/internal/dto"
	"github.com/mvtrinh/examgate/internal/model"
	"github.com/mvtrinh/examgate/internal/repository"
)

// AdminService covers content authoring: courses, chapters, exams with their
// questions, and enrollments.
type AdminService interface {
	CreateCourse(req dto.CourseCreateDTO) (*dto.CourseResponseDTO, error)
	CreateChapter(req dto.ChapterCreateDTO) (*dto.ChapterResponseDTO, error)
	CreateExam(req dto.ExamCreateDTO) (*dto.ExamResponseDTO, error)
	EnrollUser(req dto.EnrollmentCreateDTO) error
}

type adminService struct {
	courseRepo     repository.CourseRepository
	examRepo       repository.ExamRepository
	enrollmentRepo repository.EnrollmentRepository
	userRepo       repository.UserRepository
}

func NewAdminService(
	courseRepo repository.CourseRepository,
	examRepo repository.ExamRepository,
	enrollmentRepo repository.EnrollmentRepository,
	userRepo repository.UserRepository,
) AdminService {
	return &adminService{
		courseRepo:     courseRepo,
		examRepo:       examRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
	}
}

func (s *adminService) CreateCourse(req dto.CourseCreateDTO) (*dto.CourseResponseDTO, error) {
	course := &model.Course{Title: req.Title, Description: req.Description}
	if err := s.courseRepo.CreateCourse(course); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("CreateCourse failed")
		return nil, fmt.Errorf("creating course: %w", err)
	}
	var resp dto.CourseResponseDTO
	if err := copier.Copy(&resp, course); err != nil {
		return nil, fmt.Errorf("preparing course response: %w", err)
	}
	return &resp, nil
}

func (s *adminService) CreateChapter(req dto.ChapterCreateDTO) (*dto.ChapterResponseDTO, error) {
	if _, err := s.courseRepo.FindCourseByID(req.CourseID); err != nil {
		return nil, fmt.Errorf("course %d not found: %w", req.CourseID, err)
	}
	chapter := &model.Chapter{
		CourseID:      req.CourseID,
		Title:         req.Title,
		OrderInCourse: req.OrderInCourse,
	}
	if err := s.courseRepo.CreateChapter(chapter); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("CreateChapter failed")
		return nil, fmt.Errorf("creating chapter: %w", err)
	}
	var resp dto.ChapterResponseDTO
	if err := copier.Copy(&resp, chapter); err != nil {
		return nil, fmt.Errorf("preparing chapter response: %w", err)
	}
	return &resp, nil
}

func (s *adminService) CreateExam(req dto.ExamCreateDTO) (*dto.ExamResponseDTO, error) {
	if _, err := s.courseRepo.FindChapterByID(req.ChapterID); err != nil {
		return nil, fmt.Errorf("chapter %d not found: %w", req.ChapterID, err)
	}

	exam := &model.Exam{
		ChapterID:        req.ChapterID,
		Title:            req.Title,
		Description:      req.Description,
		TimeLimitMinutes: req.TimeLimitMinutes,
		MaxAttempts:      req.MaxAttempts,
		PassingScore:     req.PassingScore,
	}
	for _, q := range req.Questions {
		question := model.Question{
			Text:        q.Text,
			Points:      q.Points,
			OrderInExam: q.OrderInExam,
		}
		correctCount := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correctCount++
			}
			question.Options = append(question.Options, model.Option{
				Text:      o.Text,
				IsCorrect: o.IsCorrect,
			})
		}
		if correctCount != 1 {
			return nil, fmt.Errorf("question %q must have exactly one correct option, got %d", q.Text, correctCount)
		}
		exam.Questions = append(exam.Questions, question)
	}

	if err := s.examRepo.Create(exam); err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("CreateExam failed")
		return nil, fmt.Errorf("creating exam: %w", err)
	}

	var resp dto.ExamResponseDTO
	if err := copier.Copy(&resp, exam); err != nil {
		return nil, fmt.Errorf("preparing exam response: %w", err)
	}
	return &resp, nil
}

func (s *adminService) EnrollUser(req dto.EnrollmentCreateDTO) error {
	if _, err := s.userRepo.FindByID(req.UserID); err != nil {
		return fmt.Errorf("user %d not found: %w", req.UserID, err)
	}
	if _, err := s.courseRepo.FindCourseByID(req.CourseID); err != nil {
		return fmt.Errorf("course %d not found: %w", req.CourseID, err)
	}
	enrolled, err := s.enrollmentRepo.IsEnrolled(req.UserID, req.CourseID)
	if err != nil {
		return fmt.Errorf("checking enrollment: %w", err)
	}
	if enrolled {
		return nil
	}
	if err := s.enrollmentRepo.Create(&model.Enrollment{UserID: req.UserID, CourseID: req.CourseID}); err != nil {
		return fmt.Errorf("creating enrollment: %w", err)
	}
	return nil
}
