package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mvtrinh/examgate/internal/cache"
	"github.com/mvtrinh/examgate/internal/dto"
	"github.com/mvtrinh/examgate/internal/model"
	"github.com/mvtrinh/examgate/internal/repository"
)

const (
	AttemptStatusNew     = "new"
	AttemptStatusResumed = "resumed"
)

// AttemptService owns the attempt lifecycle: gating creation and resumption,
// recording answers, and the one-way completion transition.
type AttemptService interface {
	StartOrResume(examID, userID uint) (*dto.StartAttemptResponseDTO, error)
	SaveAnswer(attemptID, userID uint, req dto.SaveAnswerRequest) (*dto.SaveAnswerResponseDTO, error)
	Submit(attemptID, userID uint) (*dto.SubmitResultDTO, error)
	GetAttemptDetail(attemptID, userID uint, withExplanations bool) (*dto.AttemptDetailDTO, error)
	GetHistory(examID, userID uint) (*dto.AttemptHistoryDTO, error)
	// ExpireOverdue completes every in-progress attempt whose deadline has
	// passed, marking it timed out. It returns how many attempts it closed.
	ExpireOverdue() (int, error)
}

type attemptService struct {
	examRepo       repository.ExamRepository
	attemptRepo    repository.ExamAttemptRepository
	answerRepo     repository.QuestionAttemptRepository
	enrollmentRepo repository.EnrollmentRepository
	explainer      ExplanationService
	statsCache     *cache.Cache
	statsCacheTTL  time.Duration
	now            func() time.Time
}

func NewAttemptService(
	examRepo repository.ExamRepository,
	attemptRepo repository.ExamAttemptRepository,
	answerRepo repository.QuestionAttemptRepository,
	enrollmentRepo repository.EnrollmentRepository,
	explainer ExplanationService,
	statsCache *cache.Cache,
	statsCacheTTL time.Duration,
) AttemptService {
	return &attemptService{
		examRepo:       examRepo,
		attemptRepo:    attemptRepo,
		answerRepo:     answerRepo,
		enrollmentRepo: enrollmentRepo,
		explainer:      explainer,
		statsCache:     statsCache,
		statsCacheTTL:  statsCacheTTL,
		now:            time.Now,
	}
}

func (s *attemptService) StartOrResume(examID, userID uint) (*dto.StartAttemptResponseDTO, error) {
	exam, err := s.examRepo.FindByIDWithChapter(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("loading exam %d: %w", examID, err)
	}

	// An open attempt is always resumed, never duplicated, and resuming
	// takes precedence over every other gate.
	existing, err := s.attemptRepo.FindInProgress(examID, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up open attempt: %w", err)
	}
	if existing != nil {
		log.Info().Uint("attemptID", existing.ID).Uint("examID", examID).Uint("userID", userID).
			Msg("StartOrResume: resuming open attempt")
		return s.startResponse(existing, AttemptStatusResumed)
	}

	if exam.MaxAttempts > 0 {
		completed, err := s.attemptRepo.CountCompleted(examID, userID)
		if err != nil {
			return nil, fmt.Errorf("counting completed attempts: %w", err)
		}
		if completed >= int64(exam.MaxAttempts) {
			return nil, &MaxAttemptsError{Max: exam.MaxAttempts}
		}
	}

	enrolled, err := s.enrollmentRepo.IsEnrolled(userID, exam.Chapter.CourseID)
	if err != nil {
		return nil, fmt.Errorf("checking enrollment: %w", err)
	}
	if !enrolled {
		return nil, &AccessDeniedError{Chapter: exam.Chapter.Title}
	}

	attempt := &model.ExamAttempt{
		ExamID:    examID,
		UserID:    userID,
		StartedAt: s.now(),
	}
	if err := s.attemptRepo.Create(attempt); err != nil {
		return nil, fmt.Errorf("creating attempt: %w", err)
	}
	log.Info().Uint("attemptID", attempt.ID).Uint("examID", examID).Uint("userID", userID).
		Msg("StartOrResume: opened new attempt")
	return s.startResponse(attempt, AttemptStatusNew)
}

func (s *attemptService) startResponse(attempt *model.ExamAttempt, status string) (*dto.StartAttemptResponseDTO, error) {
	var summary dto.AttemptSummaryDTO
	if err := copier.Copy(&summary, attempt); err != nil {
		return nil, fmt.Errorf("preparing attempt response: %w", err)
	}
	return &dto.StartAttemptResponseDTO{Attempt: summary, Status: status}, nil
}

func (s *attemptService) SaveAnswer(attemptID, userID uint, req dto.SaveAnswerRequest) (*dto.SaveAnswerResponseDTO, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("loading attempt %d: %w", attemptID, err)
	}
	if attempt.UserID != userID {
		return nil, ErrNotAttemptOwner
	}
	if attempt.IsCompleted() {
		return nil, ErrAttemptAlreadyCompleted
	}

	exam, err := s.examRepo.FindByIDWithQuestions(attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("loading exam %d: %w", attempt.ExamID, err)
	}

	// A save landing after the deadline completes the attempt as timed out
	// first, then reports the rejection.
	if deadline, ok := exam.Deadline(attempt.StartedAt); ok && s.now().After(deadline) {
		if _, err := s.complete(attempt, exam, true); err != nil {
			return nil, err
		}
		return nil, ErrAttemptAlreadyCompleted
	}

	var question *model.Question
	for i := range exam.Questions {
		if exam.Questions[i].ID == req.QuestionID {
			question = &exam.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, ErrQuestionNotInExam
	}

	var selected *model.Option
	for i := range question.Options {
		if question.Options[i].ID == req.SelectedOptionID {
			selected = &question.Options[i]
			break
		}
	}
	if selected == nil {
		return nil, ErrOptionNotInChoices
	}

	answer := &model.QuestionAttempt{
		AttemptID:        attemptID,
		QuestionID:       question.ID,
		SelectedOptionID: selected.ID,
		IsCorrect:        selected.IsCorrect,
		TimeSpentSec:     req.TimeSpentSec,
		AnsweredAt:       s.now(),
	}
	saved, err := s.answerRepo.UpsertIfAttemptOpen(answer)
	if err != nil {
		return nil, fmt.Errorf("saving answer: %w", err)
	}
	if !saved {
		// Lost the race against a concurrent completion.
		return nil, ErrAttemptAlreadyCompleted
	}

	return &dto.SaveAnswerResponseDTO{
		QuestionID:       question.ID,
		SelectedOptionID: selected.ID,
		IsCorrect:        selected.IsCorrect,
		Saved:            true,
	}, nil
}

func (s *attemptService) Submit(attemptID, userID uint) (*dto.SubmitResultDTO, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("loading attempt %d: %w", attemptID, err)
	}
	if attempt.UserID != userID {
		return nil, ErrNotAttemptOwner
	}
	if attempt.IsCompleted() {
		// Idempotent: repeated submits return the stored result unchanged.
		return submitResult(attempt), nil
	}

	exam, err := s.examRepo.FindByIDWithQuestions(attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("loading exam %d: %w", attempt.ExamID, err)
	}

	timedOut := false
	if deadline, ok := exam.Deadline(attempt.StartedAt); ok && s.now().After(deadline) {
		timedOut = true
	}
	return s.complete(attempt, exam, timedOut)
}

// complete performs the InProgress -> Completed transition. The conditional
// update in the repository is the authoritative gate: whichever caller wins
// writes score and flags, every later caller gets the stored result.
func (s *attemptService) complete(attempt *model.ExamAttempt, exam *model.Exam, timedOut bool) (*dto.SubmitResultDTO, error) {
	answers, err := s.answerRepo.FindByAttemptID(attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("loading answers for attempt %d: %w", attempt.ID, err)
	}

	score := scoreAttempt(exam.Questions, answers)
	passed := score >= exam.PassingScore
	completedAt := s.now()

	won, err := s.attemptRepo.CompleteIfOpen(attempt.ID, completedAt, score, passed, timedOut)
	if err != nil {
		return nil, fmt.Errorf("completing attempt %d: %w", attempt.ID, err)
	}
	if !won {
		stored, err := s.attemptRepo.FindByID(attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("reloading completed attempt %d: %w", attempt.ID, err)
		}
		return submitResult(stored), nil
	}

	s.statsCache.Delete(context.Background(), statsCacheKey(attempt.ExamID, attempt.UserID))
	log.Info().Uint("attemptID", attempt.ID).Float64("score", score).Bool("passed", passed).
		Bool("timedOut", timedOut).Msg("Attempt completed")

	return &dto.SubmitResultDTO{
		AttemptID:   attempt.ID,
		Score:       score,
		Passed:      passed,
		TimedOut:    timedOut,
		CompletedAt: completedAt,
	}, nil
}

// scoreAttempt is the percentage of available points earned by correct
// answers. An exam without point-bearing questions scores zero.
func scoreAttempt(questions []model.Question, answers []model.QuestionAttempt) float64 {
	var total, earned float64
	correct := make(map[uint]bool, len(answers))
	for _, a := range answers {
		if a.IsCorrect {
			correct[a.QuestionID] = true
		}
	}
	for _, q := range questions {
		total += q.Points
		if correct[q.ID] {
			earned += q.Points
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(earned/total*10000) / 100
}

func submitResult(attempt *model.ExamAttempt) *dto.SubmitResultDTO {
	res := &dto.SubmitResultDTO{
		AttemptID: attempt.ID,
		Passed:    attempt.Passed,
		TimedOut:  attempt.TimedOut,
	}
	if attempt.Score != nil {
		res.Score = *attempt.Score
	}
	if attempt.CompletedAt != nil {
		res.CompletedAt = *attempt.CompletedAt
	}
	return res
}

func (s *attemptService) GetAttemptDetail(attemptID, userID uint, withExplanations bool) (*dto.AttemptDetailDTO, error) {
	attempt, err := s.attemptRepo.FindByIDWithDetails(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("loading attempt %d: %w", attemptID, err)
	}
	if attempt.UserID != userID {
		return nil, ErrNotAttemptOwner
	}

	var resp dto.AttemptDetailDTO
	if err := copier.Copy(&resp, attempt); err != nil {
		return nil, fmt.Errorf("preparing attempt detail: %w", err)
	}
	resp.ExamTitle = attempt.Exam.Title

	questionByID := make(map[uint]model.Question, len(attempt.Exam.Questions))
	for _, q := range attempt.Exam.Questions {
		questionByID[q.ID] = q
	}

	resp.Answers = make([]dto.AnswerDetailDTO, len(attempt.Answers))
	for i, ans := range attempt.Answers {
		resp.Answers[i] = dto.AnswerDetailDTO{
			QuestionID:       ans.QuestionID,
			SelectedOptionID: ans.SelectedOptionID,
			IsCorrect:        ans.IsCorrect,
			TimeSpentSec:     ans.TimeSpentSec,
			AnsweredAt:       ans.AnsweredAt,
		}
		// Explanations only for missed questions on completed attempts, and
		// only when the explanation backend is configured.
		if withExplanations && attempt.IsCompleted() && !ans.IsCorrect {
			q, ok := questionByID[ans.QuestionID]
			if !ok {
				continue
			}
			explanation, err := s.explainer.ExplainMistake(&q, ans.SelectedOptionID)
			if err != nil {
				log.Warn().Err(err).Uint("questionID", ans.QuestionID).Msg("Explanation generation failed")
				continue
			}
			resp.Answers[i].Explanation = explanation
		}
	}
	return &resp, nil
}

func (s *attemptService) GetHistory(examID, userID uint) (*dto.AttemptHistoryDTO, error) {
	exam, err := s.examRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("loading exam %d: %w", examID, err)
	}

	attempts, err := s.attemptRepo.FindAllByExamAndUser(examID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading attempts: %w", err)
	}

	summaries := make([]dto.AttemptSummaryDTO, 0, len(attempts))
	for _, a := range attempts {
		var summary dto.AttemptSummaryDTO
		if err := copier.Copy(&summary, &a); err != nil {
			log.Error().Err(err).Uint("attemptID", a.ID).Msg("GetHistory: copy to summary failed")
			continue
		}
		summaries = append(summaries, summary)
	}

	stats, err := s.stats(exam, userID, attempts)
	if err != nil {
		return nil, err
	}
	return &dto.AttemptHistoryDTO{Attempts: summaries, Stats: *stats}, nil
}

func (s *attemptService) stats(exam *model.Exam, userID uint, attempts []model.ExamAttempt) (*dto.AttemptStatsDTO, error) {
	ctx := context.Background()
	key := statsCacheKey(exam.ID, userID)

	var cached dto.AttemptStatsDTO
	if s.statsCache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	stats := dto.AttemptStatsDTO{}
	var sum float64
	var completed int
	for _, a := range attempts {
		if !a.IsCompleted() || a.Score == nil {
			continue
		}
		completed++
		sum += *a.Score
		if stats.BestScore == nil || *a.Score > *stats.BestScore {
			score := *a.Score
			stats.BestScore = &score
		}
		if a.Passed {
			stats.HasPassedAttempt = true
		}
	}
	stats.AttemptCount = completed
	if completed > 0 {
		avg := math.Round(sum/float64(completed)*100) / 100
		stats.AverageScore = &avg
	}
	if exam.MaxAttempts > 0 {
		remaining := exam.MaxAttempts - completed
		if remaining < 0 {
			remaining = 0
		}
		stats.RemainingAttempts = &remaining
	}

	s.statsCache.SetJSON(ctx, key, &stats, s.statsCacheTTL)
	return &stats, nil
}

func (s *attemptService) ExpireOverdue() (int, error) {
	attempts, err := s.attemptRepo.FindInProgressWithExam()
	if err != nil {
		return 0, fmt.Errorf("loading in-progress attempts: %w", err)
	}

	expired := 0
	for i := range attempts {
		attempt := &attempts[i]
		deadline, ok := attempt.Exam.Deadline(attempt.StartedAt)
		if !ok || s.now().Before(deadline) {
			continue
		}
		exam, err := s.examRepo.FindByIDWithQuestions(attempt.ExamID)
		if err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("ExpireOverdue: loading exam failed")
			continue
		}
		if _, err := s.complete(attempt, exam, true); err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("ExpireOverdue: completion failed")
			continue
		}
		expired++
	}
	return expired, nil
}

func statsCacheKey(examID, userID uint) string {
	return fmt.Sprintf("attempt_stats:exam:%d:user:%d", examID, userID)
}
