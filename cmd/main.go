package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/mvtrinh/examgate/config"
	"github.com/mvtrinh/examgate/database"
	_ "github.com/mvtrinh/examgate/docs" // Swagger docs - auto-generated
	"github.com/mvtrinh/examgate/internal/cache"
	adminctrl "github.com/mvtrinh/examgate/internal/controller/admin"
	authctrl "github.com/mvtrinh/examgate/internal/controller/auth"
	userctrl "github.com/mvtrinh/examgate/internal/controller/user"
	"github.com/mvtrinh/examgate/internal/logger"
	"github.com/mvtrinh/examgate/internal/middleware"
	"github.com/mvtrinh/examgate/internal/model"
	"github.com/mvtrinh/examgate/internal/repository"
	"github.com/mvtrinh/examgate/internal/service"
)

// @title Examgate API
// @version 1.0
// @description Exam attempt lifecycle API: courses, timed exams, answer autosave and scoring.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			database.NewRedis,
			cache.New,
			NewGinEngine,
		),

		fx.Provide(
			repository.NewUserRepository,
			repository.NewCourseRepository,
			repository.NewEnrollmentRepository,
			repository.NewExamRepository,
			repository.NewQuestionRepository,
			repository.NewExamAttemptRepository,
			repository.NewQuestionAttemptRepository,
		),

		fx.Provide(
			service.NewAuthService,
			service.NewExamService,
			service.NewAdminService,
			service.NewExplanationService,
			func(
				examRepo repository.ExamRepository,
				attemptRepo repository.ExamAttemptRepository,
				answerRepo repository.QuestionAttemptRepository,
				enrollmentRepo repository.EnrollmentRepository,
				explainer service.ExplanationService,
				statsCache *cache.Cache,
				cfg *config.Config,
			) service.AttemptService {
				return service.NewAttemptService(
					examRepo, attemptRepo, answerRepo, enrollmentRepo,
					explainer, statsCache, cfg.Attempt.StatsCacheTTL,
				)
			},
		),

		fx.Provide(
			authctrl.NewAuthController,
			userctrl.NewExamController,
			userctrl.NewAttemptController,
			adminctrl.NewAdminController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
		fx.Invoke(service.StartAttemptSweeper),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	authController *authctrl.AuthController,
	examController *userctrl.ExamController,
	attemptController *userctrl.AttemptController,
	adminController *adminctrl.AdminController,
) {
	apiV1 := router.Group("/api/v1")

	authGroup := apiV1.Group("/auth")
	{
		authGroup.POST("/register", authController.Register)
		authGroup.POST("/login", authController.Login)
	}

	protected := apiV1.Group("")
	protected.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	{
		protected.GET("/exams", examController.GetAllExams)
		protected.GET("/exams/:exam_id", examController.GetExamDetails)
		protected.GET("/exams/:exam_id/questions", examController.GetExamQuestions)

		protected.POST("/exams/:exam_id/attempts", attemptController.StartAttempt)
		protected.GET("/exams/:exam_id/my-attempts", attemptController.GetMyAttempts)
		protected.PUT("/attempts/:attempt_id/answers", attemptController.SaveAnswer)
		protected.POST("/attempts/:attempt_id/submit", attemptController.SubmitAttempt)
		protected.GET("/attempts/:attempt_id", attemptController.GetAttemptDetail)
	}

	adminGroup := apiV1.Group("/admin")
	adminGroup.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret), middleware.RequireRole(model.RoleAdmin))
	{
		adminGroup.POST("/courses", adminController.CreateCourse)
		adminGroup.POST("/chapters", adminController.CreateChapter)
		adminGroup.POST("/exams", adminController.CreateExam)
		adminGroup.POST("/enrollments", adminController.EnrollUser)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Examgate API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Chapter{},
		&model.Enrollment{},
		&model.Exam{},
		&model.Question{},
		&model.Option{},
		&model.ExamAttempt{},
		&model.QuestionAttempt{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
