package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mvtrinh/examgate/internal/repository"
)

func newExamServiceForTest(t *testing.T, db *gorm.DB) ExamService {
	t.Helper()
	return NewExamService(repository.NewExamRepository(db), repository.NewQuestionRepository(db))
}

func TestGetExamDetails_StripsAnswerKey(t *testing.T) {
	db := newTestDB(t)
	svc := newExamServiceForTest(t, db)
	exam := seedExam(t, db, 30, 3, 70)

	resp, err := svc.GetExamDetails(exam.ID)
	require.NoError(t, err)

	require.Len(t, resp.Questions, 2)
	assert.Equal(t, "2 + 2 = ?", resp.Questions[0].Text)
	require.Len(t, resp.Questions[0].Options, 2)
	// OptionResponseDTO has no correctness field, so serialized options carry
	// only id and text.
	assert.NotZero(t, resp.Questions[0].Options[0].ID)
	assert.NotEmpty(t, resp.Questions[0].Options[0].Text)
}

func TestGetExamDetails_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newExamServiceForTest(t, db)

	_, err := svc.GetExamDetails(999)
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestGetExamQuestions_PagesInExamOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newExamServiceForTest(t, db)
	exam := seedExam(t, db, 30, 3, 70)

	page, err := svc.GetExamQuestions(exam.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.PageSize)
	require.Len(t, page.Questions, 1)
	assert.Equal(t, "2 + 2 = ?", page.Questions[0].Text)

	page, err = svc.GetExamQuestions(exam.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page.Questions, 1)
	assert.Equal(t, "3 * 3 = ?", page.Questions[0].Text)
}

func TestGetExamQuestions_ClampsBadPaging(t *testing.T) {
	db := newTestDB(t)
	svc := newExamServiceForTest(t, db)
	exam := seedExam(t, db, 30, 3, 70)

	page, err := svc.GetExamQuestions(exam.ID, 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultQuestionPageSize, page.PageSize)
	assert.Len(t, page.Questions, 2)
}

func TestGetExamQuestions_UnknownExam(t *testing.T) {
	db := newTestDB(t)
	svc := newExamServiceForTest(t, db)

	_, err := svc.GetExamQuestions(999, 1, 10)
	assert.ErrorIs(t, err, ErrExamNotFound)
}
