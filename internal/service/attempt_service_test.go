package service

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mvtrinh/examgate/config"
	"github.com/mvtrinh/examgate/internal/cache"
	"github.com/mvtrinh/examgate/internal/dto"
	"github.com/mvtrinh/examgate/internal/model"
	"github.com/mvtrinh/examgate/internal/repository"
)

var courseSeq uint32

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Chapter{},
		&model.Enrollment{},
		&model.Exam{},
		&model.Question{},
		&model.Option{},
		&model.ExamAttempt{},
		&model.QuestionAttempt{},
	))
	return db
}

func newAttemptServiceForTest(t *testing.T, db *gorm.DB) *attemptService {
	t.Helper()
	explainer, err := NewExplanationService(&config.Config{})
	require.NoError(t, err)
	svc := NewAttemptService(
		repository.NewExamRepository(db),
		repository.NewExamAttemptRepository(db),
		repository.NewQuestionAttemptRepository(db),
		repository.NewEnrollmentRepository(db),
		explainer,
		cache.New(nil),
		time.Second,
	)
	return svc.(*attemptService)
}

// seedExam creates a course, a chapter and a two-question exam where every
// question is worth one point.
func seedExam(t *testing.T, db *gorm.DB, timeLimitMinutes, maxAttempts int, passingScore float64) *model.Exam {
	t.Helper()
	course := model.Course{Title: fmt.Sprintf("Algebra %s %d", t.Name(), atomic.AddUint32(&courseSeq, 1))}
	require.NoError(t, db.Create(&course).Error)
	chapter := model.Chapter{CourseID: course.ID, Title: "Linear Equations", OrderInCourse: 1}
	require.NoError(t, db.Create(&chapter).Error)
	exam := model.Exam{
		ChapterID:        chapter.ID,
		Title:            "Midterm",
		TimeLimitMinutes: timeLimitMinutes,
		MaxAttempts:      maxAttempts,
		PassingScore:     passingScore,
		Questions: []model.Question{
			{
				Text: "2 + 2 = ?", Points: 1, OrderInExam: 1,
				Options: []model.Option{{Text: "3"}, {Text: "4", IsCorrect: true}},
			},
			{
				Text: "3 * 3 = ?", Points: 1, OrderInExam: 2,
				Options: []model.Option{{Text: "9", IsCorrect: true}, {Text: "6"}},
			},
		},
	}
	require.NoError(t, db.Create(&exam).Error)
	return &exam
}

func enroll(t *testing.T, db *gorm.DB, userID uint, exam *model.Exam) {
	t.Helper()
	var chapter model.Chapter
	require.NoError(t, db.First(&chapter, exam.ChapterID).Error)
	require.NoError(t, db.Create(&model.Enrollment{UserID: userID, CourseID: chapter.CourseID}).Error)
}

func correctOption(t *testing.T, q model.Question) uint {
	t.Helper()
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	t.Fatalf("question %d has no correct option", q.ID)
	return 0
}

func wrongOption(t *testing.T, q model.Question) uint {
	t.Helper()
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o.ID
		}
	}
	t.Fatalf("question %d has no wrong option", q.ID)
	return 0
}

func TestStartOrResume_ResumesOpenAttempt(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	first, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, AttemptStatusNew, first.Status)

	second, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, AttemptStatusResumed, second.Status)
	assert.Equal(t, first.Attempt.ID, second.Attempt.ID)

	var count int64
	require.NoError(t, db.Model(&model.ExamAttempt{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestStartOrResume_EnforcesMaxAttempts(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 2, 70)
	enroll(t, db, 1, exam)

	for i := 0; i < 2; i++ {
		started, err := svc.StartOrResume(exam.ID, 1)
		require.NoError(t, err)
		_, err = svc.Submit(started.Attempt.ID, 1)
		require.NoError(t, err)
	}

	_, err := svc.StartOrResume(exam.ID, 1)
	var maxErr *MaxAttemptsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 2, maxErr.Max)

	// The rejected start must not leave a row behind.
	var count int64
	require.NoError(t, db.Model(&model.ExamAttempt{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestStartOrResume_AccessDenied(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)

	_, err := svc.StartOrResume(exam.ID, 42)
	var accessErr *AccessDeniedError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "Linear Equations", accessErr.Chapter)
}

func TestStartOrResume_ResumeOutranksRevokedEnrollment(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)

	// Losing enrollment mid-attempt must not strand the open attempt.
	require.NoError(t, db.Where("user_id = ?", 1).Delete(&model.Enrollment{}).Error)

	resumed, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, AttemptStatusResumed, resumed.Status)
	assert.Equal(t, started.Attempt.ID, resumed.Attempt.ID)
}

func TestStartOrResume_MaxAttemptsOutranksAccess(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 1, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	_, err = svc.Submit(started.Attempt.ID, 1)
	require.NoError(t, err)

	// A user both unenrolled and at the limit hits the limit first.
	require.NoError(t, db.Where("user_id = ?", 1).Delete(&model.Enrollment{}).Error)

	_, err = svc.StartOrResume(exam.ID, 1)
	var maxErr *MaxAttemptsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 1, maxErr.Max)
}

func TestStartOrResume_ExamNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)

	_, err := svc.StartOrResume(999, 1)
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestSaveAnswer_LastWriteWins(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	attemptID := started.Attempt.ID

	q := exam.Questions[0]
	right := correctOption(t, q)
	wrong := wrongOption(t, q)

	for _, optionID := range []uint{wrong, right, wrong} {
		_, err := svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{
			QuestionID:       q.ID,
			SelectedOptionID: optionID,
		})
		require.NoError(t, err)
	}

	var rows []model.QuestionAttempt
	require.NoError(t, db.Where("attempt_id = ? AND question_id = ?", attemptID, q.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, wrong, rows[0].SelectedOptionID)
	assert.False(t, rows[0].IsCorrect)
}

func TestSaveAnswer_RejectsUnknownQuestionAndOption(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)

	_, err = svc.SaveAnswer(started.Attempt.ID, 1, dto.SaveAnswerRequest{
		QuestionID:       9999,
		SelectedOptionID: correctOption(t, exam.Questions[0]),
	})
	assert.ErrorIs(t, err, ErrQuestionNotInExam)

	// An option belonging to another question of the same exam is rejected too.
	_, err = svc.SaveAnswer(started.Attempt.ID, 1, dto.SaveAnswerRequest{
		QuestionID:       exam.Questions[0].ID,
		SelectedOptionID: correctOption(t, exam.Questions[1]),
	})
	assert.ErrorIs(t, err, ErrOptionNotInChoices)
}

func TestSaveAnswer_RejectedAfterCompletion(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	attemptID := started.Attempt.ID

	q := exam.Questions[0]
	right := correctOption(t, q)
	_, err = svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{QuestionID: q.ID, SelectedOptionID: right})
	require.NoError(t, err)

	_, err = svc.Submit(attemptID, 1)
	require.NoError(t, err)

	_, err = svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{
		QuestionID:       q.ID,
		SelectedOptionID: wrongOption(t, q),
	})
	assert.ErrorIs(t, err, ErrAttemptAlreadyCompleted)

	// The rejected save must not have mutated the stored answer.
	var rows []model.QuestionAttempt
	require.NoError(t, db.Where("attempt_id = ?", attemptID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, right, rows[0].SelectedOptionID)
}

func TestSaveAnswer_OwnershipEnforced(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)

	_, err = svc.SaveAnswer(started.Attempt.ID, 2, dto.SaveAnswerRequest{
		QuestionID:       exam.Questions[0].ID,
		SelectedOptionID: correctOption(t, exam.Questions[0]),
	})
	assert.ErrorIs(t, err, ErrNotAttemptOwner)

	_, err = svc.Submit(started.Attempt.ID, 2)
	assert.ErrorIs(t, err, ErrNotAttemptOwner)
}

func TestSubmit_ScoresAndPasses(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	attemptID := started.Attempt.ID

	for _, q := range exam.Questions {
		_, err := svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{
			QuestionID:       q.ID,
			SelectedOptionID: correctOption(t, q),
		})
		require.NoError(t, err)
	}

	result, err := svc.Submit(attemptID, 1)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.Score, 0.001)
	assert.True(t, result.Passed)
	assert.False(t, result.TimedOut)
}

func TestSubmit_HalfCorrectFailsAt70(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	attemptID := started.Attempt.ID

	_, err = svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{
		QuestionID:       exam.Questions[0].ID,
		SelectedOptionID: correctOption(t, exam.Questions[0]),
	})
	require.NoError(t, err)
	_, err = svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{
		QuestionID:       exam.Questions[1].ID,
		SelectedOptionID: wrongOption(t, exam.Questions[1]),
	})
	require.NoError(t, err)

	result, err := svc.Submit(attemptID, 1)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.Score, 0.001)
	assert.False(t, result.Passed)
}

func TestSubmit_Idempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	attemptID := started.Attempt.ID

	_, err = svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{
		QuestionID:       exam.Questions[0].ID,
		SelectedOptionID: correctOption(t, exam.Questions[0]),
	})
	require.NoError(t, err)

	first, err := svc.Submit(attemptID, 1)
	require.NoError(t, err)
	second, err := svc.Submit(attemptID, 1)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Passed, second.Passed)
	assert.WithinDuration(t, first.CompletedAt, second.CompletedAt, time.Millisecond)
}

func TestSubmit_PastDeadlineMarksTimedOut(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 30, 0, 70)
	enroll(t, db, 1, exam)

	base := time.Now()
	svc.now = func() time.Time { return base }

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(31 * time.Minute) }

	result, err := svc.Submit(started.Attempt.ID, 1)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
}

func TestSaveAnswer_PastDeadlineCompletesTimedOut(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 30, 0, 70)
	enroll(t, db, 1, exam)

	base := time.Now()
	svc.now = func() time.Time { return base }

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	attemptID := started.Attempt.ID

	svc.now = func() time.Time { return base.Add(31 * time.Minute) }

	_, err = svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{
		QuestionID:       exam.Questions[0].ID,
		SelectedOptionID: correctOption(t, exam.Questions[0]),
	})
	assert.ErrorIs(t, err, ErrAttemptAlreadyCompleted)

	var attempt model.ExamAttempt
	require.NoError(t, db.First(&attempt, attemptID).Error)
	require.True(t, attempt.IsCompleted())
	assert.True(t, attempt.TimedOut)
	require.NotNil(t, attempt.Score)
	assert.InDelta(t, 0.0, *attempt.Score, 0.001)
}

func TestExpireOverdue_ClosesOnlyOverdueAttempts(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	timed := seedExam(t, db, 30, 0, 70)
	untimed := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, timed)
	enroll(t, db, 1, untimed)

	base := time.Now()
	svc.now = func() time.Time { return base }

	overdue, err := svc.StartOrResume(timed.ID, 1)
	require.NoError(t, err)
	open, err := svc.StartOrResume(untimed.ID, 1)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(31 * time.Minute) }

	closed, err := svc.ExpireOverdue()
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	var expired model.ExamAttempt
	require.NoError(t, db.First(&expired, overdue.Attempt.ID).Error)
	require.True(t, expired.IsCompleted())
	assert.True(t, expired.TimedOut)
	require.NotNil(t, expired.Score)
	assert.InDelta(t, 0.0, *expired.Score, 0.001)

	var stillOpen model.ExamAttempt
	require.NoError(t, db.First(&stillOpen, open.Attempt.ID).Error)
	assert.False(t, stillOpen.IsCompleted())

	// A second sweep finds nothing left to close.
	closed, err = svc.ExpireOverdue()
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestGetAttemptDetail(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 0, 70)
	enroll(t, db, 1, exam)

	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	attemptID := started.Attempt.ID

	_, err = svc.SaveAnswer(attemptID, 1, dto.SaveAnswerRequest{
		QuestionID:       exam.Questions[0].ID,
		SelectedOptionID: wrongOption(t, exam.Questions[0]),
		TimeSpentSec:     12,
	})
	require.NoError(t, err)
	_, err = svc.Submit(attemptID, 1)
	require.NoError(t, err)

	detail, err := svc.GetAttemptDetail(attemptID, 1, true)
	require.NoError(t, err)
	assert.Equal(t, "Midterm", detail.ExamTitle)
	require.Len(t, detail.Answers, 1)
	assert.Equal(t, exam.Questions[0].ID, detail.Answers[0].QuestionID)
	assert.False(t, detail.Answers[0].IsCorrect)
	assert.Equal(t, 12, detail.Answers[0].TimeSpentSec)
	// Explanation backend is unconfigured, so nothing is attached.
	assert.Empty(t, detail.Answers[0].Explanation)

	_, err = svc.GetAttemptDetail(attemptID, 2, false)
	assert.ErrorIs(t, err, ErrNotAttemptOwner)
}

func TestGetHistory_Stats(t *testing.T) {
	db := newTestDB(t)
	svc := newAttemptServiceForTest(t, db)
	exam := seedExam(t, db, 0, 3, 70)
	enroll(t, db, 1, exam)

	// First attempt: half right, 50 and failed.
	started, err := svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	_, err = svc.SaveAnswer(started.Attempt.ID, 1, dto.SaveAnswerRequest{
		QuestionID:       exam.Questions[0].ID,
		SelectedOptionID: correctOption(t, exam.Questions[0]),
	})
	require.NoError(t, err)
	_, err = svc.Submit(started.Attempt.ID, 1)
	require.NoError(t, err)

	// Second attempt: all right, 100 and passed.
	started, err = svc.StartOrResume(exam.ID, 1)
	require.NoError(t, err)
	for _, q := range exam.Questions {
		_, err := svc.SaveAnswer(started.Attempt.ID, 1, dto.SaveAnswerRequest{
			QuestionID:       q.ID,
			SelectedOptionID: correctOption(t, q),
		})
		require.NoError(t, err)
	}
	_, err = svc.Submit(started.Attempt.ID, 1)
	require.NoError(t, err)

	history, err := svc.GetHistory(exam.ID, 1)
	require.NoError(t, err)
	assert.Len(t, history.Attempts, 2)

	stats := history.Stats
	assert.Equal(t, 2, stats.AttemptCount)
	require.NotNil(t, stats.BestScore)
	assert.InDelta(t, 100.0, *stats.BestScore, 0.001)
	require.NotNil(t, stats.AverageScore)
	assert.InDelta(t, 75.0, *stats.AverageScore, 0.001)
	require.NotNil(t, stats.RemainingAttempts)
	assert.Equal(t, 1, *stats.RemainingAttempts)
	assert.True(t, stats.HasPassedAttempt)
}
