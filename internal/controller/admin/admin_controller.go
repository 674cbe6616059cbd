package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvtrinh/examgate/internal/dto"
	"github.com/mvtrinh/examgate/internal/service"
)

type AdminController struct {
	adminService service.AdminService
}

func NewAdminController(adminService service.AdminService) *AdminController {
	return &AdminController{adminService: adminService}
}

// CreateCourse godoc
// @Summary Create a course
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course body dto.CourseCreateDTO true "Course"
// @Success 201 {object} dto.CourseResponseDTO
// @Failure 400 {object} dto.ErrorResponse
// @Router /admin/courses [post]
func (c *AdminController) CreateCourse(ctx *gin.Context) {
	var req dto.CourseCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	resp, err := c.adminService.CreateCourse(req)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// CreateChapter godoc
// @Summary Create a chapter within a course
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param chapter body dto.ChapterCreateDTO true "Chapter"
// @Success 201 {object} dto.ChapterResponseDTO
// @Failure 400 {object} dto.ErrorResponse
// @Router /admin/chapters [post]
func (c *AdminController) CreateChapter(ctx *gin.Context) {
	var req dto.ChapterCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	resp, err := c.adminService.CreateChapter(req)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// CreateExam godoc
// @Summary Create an exam with its questions and options
// @Description Every question must carry exactly one correct option.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exam body dto.ExamCreateDTO true "Exam with questions"
// @Success 201 {object} dto.ExamResponseDTO
// @Failure 400 {object} dto.ErrorResponse
// @Router /admin/exams [post]
func (c *AdminController) CreateExam(ctx *gin.Context) {
	var req dto.ExamCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	resp, err := c.adminService.CreateExam(req)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// EnrollUser godoc
// @Summary Enroll a user into a course
// @Description Idempotent: enrolling an already-enrolled user succeeds without
// @Description creating a duplicate.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param enrollment body dto.EnrollmentCreateDTO true "Enrollment"
// @Success 204 "Enrolled"
// @Failure 400 {object} dto.ErrorResponse
// @Router /admin/enrollments [post]
func (c *AdminController) EnrollUser(ctx *gin.Context) {
	var req dto.EnrollmentCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	if err := c.adminService.EnrollUser(req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.Status(http.StatusNoContent)
}
