package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mvtrinh/examgate/internal/dto"
	"github.com/mvtrinh/examgate/internal/middleware"
	"github.com/mvtrinh/examgate/internal/service"
)

const (
	codeMaxAttempts      = "max_attempts_reached"
	codeAccessDenied     = "access_denied"
	codeAttemptCompleted = "attempt_already_completed"
)

type AttemptController struct {
	attemptService service.AttemptService
}

func NewAttemptController(attemptService service.AttemptService) *AttemptController {
	return &AttemptController{attemptService: attemptService}
}

// StartAttempt godoc
// @Summary Start a new attempt or resume the open one
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param exam_id path int true "Exam ID"
// @Success 200 {object} dto.StartAttemptResponseDTO "Resumed an in-progress attempt"
// @Success 201 {object} dto.StartAttemptResponseDTO "Opened a new attempt"
// @Failure 403 {object} dto.ErrorResponse "Attempt limit reached or no access to the chapter"
// @Failure 404 {object} dto.ErrorResponse
// @Router /exams/{exam_id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	examID, err := strconv.ParseUint(ctx.Param("exam_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid exam ID"})
		return
	}
	userID := middleware.CurrentUserID(ctx)

	resp, err := c.attemptService.StartOrResume(uint(examID), userID)
	if err != nil {
		respondAttemptError(ctx, err, "StartAttempt")
		return
	}
	status := http.StatusCreated
	if resp.Status == service.AttemptStatusResumed {
		status = http.StatusOK
	}
	ctx.JSON(status, resp)
}

// SaveAnswer godoc
// @Summary Save or overwrite the answer for one question
// @Description Later saves for the same question replace the earlier ones. A
// @Description save reaching a completed attempt is rejected with code
// @Description attempt_already_completed and must not be retried.
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Param answer body dto.SaveAnswerRequest true "Question and selected option"
// @Success 200 {object} dto.SaveAnswerResponseDTO
// @Failure 409 {object} dto.ErrorResponse "Attempt already completed"
// @Failure 422 {object} dto.ErrorResponse "Question or option not part of the exam"
// @Router /attempts/{attempt_id}/answers [put]
func (c *AttemptController) SaveAnswer(ctx *gin.Context) {
	attemptID, err := strconv.ParseUint(ctx.Param("attempt_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid attempt ID"})
		return
	}
	var req dto.SaveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	userID := middleware.CurrentUserID(ctx)

	resp, err := c.attemptService.SaveAnswer(uint(attemptID), userID, req)
	if err != nil {
		respondAttemptError(ctx, err, "SaveAnswer")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitAttempt godoc
// @Summary Complete an attempt and compute its score
// @Description Idempotent: submitting a completed attempt returns the stored
// @Description result unchanged.
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.SubmitResultDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	attemptID, err := strconv.ParseUint(ctx.Param("attempt_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid attempt ID"})
		return
	}
	userID := middleware.CurrentUserID(ctx)

	result, err := c.attemptService.Submit(uint(attemptID), userID)
	if err != nil {
		respondAttemptError(ctx, err, "SubmitAttempt")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetAttemptDetail godoc
// @Summary Get one attempt with its answers
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Param review query bool false "Include AI explanations for missed questions (completed attempts only)"
// @Success 200 {object} dto.AttemptDetailDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id} [get]
func (c *AttemptController) GetAttemptDetail(ctx *gin.Context) {
	attemptID, err := strconv.ParseUint(ctx.Param("attempt_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid attempt ID"})
		return
	}
	userID := middleware.CurrentUserID(ctx)
	review := ctx.Query("review") == "true"

	detail, err := c.attemptService.GetAttemptDetail(uint(attemptID), userID, review)
	if err != nil {
		respondAttemptError(ctx, err, "GetAttemptDetail")
		return
	}
	ctx.JSON(http.StatusOK, detail)
}

// GetMyAttempts godoc
// @Summary List the caller's attempts for an exam, with aggregate stats
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param exam_id path int true "Exam ID"
// @Success 200 {object} dto.AttemptHistoryDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /exams/{exam_id}/my-attempts [get]
func (c *AttemptController) GetMyAttempts(ctx *gin.Context) {
	examID, err := strconv.ParseUint(ctx.Param("exam_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid exam ID"})
		return
	}
	userID := middleware.CurrentUserID(ctx)

	history, err := c.attemptService.GetHistory(uint(examID), userID)
	if err != nil {
		respondAttemptError(ctx, err, "GetMyAttempts")
		return
	}
	ctx.JSON(http.StatusOK, history)
}

// respondAttemptError maps the service error taxonomy onto HTTP statuses with
// stable machine-readable codes.
func respondAttemptError(ctx *gin.Context, err error, op string) {
	var maxErr *service.MaxAttemptsError
	var accessErr *service.AccessDeniedError

	switch {
	case errors.As(err, &maxErr):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{
			Message: maxErr.Error(),
			Code:    codeMaxAttempts,
			Details: []string{strconv.Itoa(maxErr.Max)},
		})
	case errors.As(err, &accessErr):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{
			Message: accessErr.Error(),
			Code:    codeAccessDenied,
			Details: []string{accessErr.Chapter},
		})
	case errors.Is(err, service.ErrAttemptAlreadyCompleted):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{
			Message: err.Error(),
			Code:    codeAttemptCompleted,
		})
	case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrAttemptNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrNotAttemptOwner):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrQuestionNotInExam), errors.Is(err, service.ErrOptionNotInChoices):
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: err.Error()})
	default:
		log.Error().Err(err).Str("op", op).Msg("Attempt operation failed")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal error"})
	}
}
