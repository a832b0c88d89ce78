package router

import (
	"net/http"
	"time"

	"github.com/examind/examind-backend/internal/config"
	"github.com/examind/examind-backend/internal/handler"
	"github.com/examind/examind-backend/internal/middleware"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/response"
	"github.com/examind/examind-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	AdminUser  *handler.AdminUserHandler
	Question   *handler.QuestionHandler
	Exam       *handler.ExamHandler
	Attempt    *handler.AttemptHandler
	Grading    *handler.GradingHandler
	Proctoring *handler.ProctoringHandler
	Analytics  *handler.AnalyticsHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/verify-email", handlers.Auth.VerifyEmail)
		auth.POST("/resend-verification", handlers.Auth.ResendVerification)
		auth.POST("/forgot-password", handlers.Auth.ForgotPassword)
		auth.POST("/reset-password", handlers.Auth.ResetPassword)

		auth.POST("/logout", middleware.RequireAuth(authService), handlers.Auth.Logout)
	}

	// ─── 2. Profile Group (Any Authenticated Role) ─────────────────────
	me := router.Group("/api/v1/me")
	me.Use(
		middleware.RequireAuth(authService),
		middleware.CheckSession(authService),
	)
	{
		me.GET("", handlers.Auth.GetProfile)
		me.PUT("", handlers.Auth.UpdateProfile)
		me.PUT("/password", handlers.Auth.ChangePassword)
	}

	// ─── 3. Student Group (JWT + Session + Role) ───────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireAuth(authService),
		middleware.CheckSession(authService),
		middleware.RequireRoles(model.RoleStudent),
	)
	{
		studentAPI.GET("/exams/available", handlers.Exam.AvailableExams)
		studentAPI.GET("/exams/enrolled", handlers.Exam.EnrolledExams)
		studentAPI.POST("/exams/:id/enroll", handlers.Exam.EnrollInExam)
		studentAPI.DELETE("/exams/:id/enroll", handlers.Exam.UnenrollFromExam)

		studentAPI.POST("/exams/:id/attempts", handlers.Attempt.StartOrResume)
		studentAPI.PUT("/attempts/:id/answers", handlers.Attempt.SaveAnswer)
		studentAPI.POST("/attempts/:id/submit", handlers.Attempt.Submit)
		studentAPI.GET("/attempts/:id/result", handlers.Attempt.GetResult)
		studentAPI.GET("/results", handlers.Attempt.MyResults)
		studentAPI.GET("/analytics", handlers.Analytics.MyAnalytics)

		studentAPI.POST("/proctoring/events", handlers.Proctoring.RecordEvent)
	}

	// ─── 4. WebSocket Group (Query Token Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(authService),
		middleware.RequireRoles(model.RoleStudent),
	)
	{
		ws.GET("/student/attempts/:id/stream", handlers.WS.AttemptStream)
	}

	// ─── 5. Proctor Group (JWT + Session + Role) ───────────────────────
	proctorAPI := router.Group("/api/v1/proctor")
	proctorAPI.Use(
		middleware.RequireAuth(authService),
		middleware.CheckSession(authService),
		middleware.RequireRoles(model.RoleProctor, model.RoleAdmin),
	)
	{
		proctorAPI.GET("/exams", handlers.Exam.ProctorExams)
		proctorAPI.GET("/sessions", handlers.Proctoring.ActiveSessions)
		proctorAPI.GET("/exams/:id/logs", handlers.Proctoring.ListExamLogs)
		proctorAPI.GET("/exams/:id/stats", handlers.Proctoring.ExamProctoringStats)
		proctorAPI.GET("/exams/:id/flagged", handlers.Proctoring.FlaggedAttempts)
		proctorAPI.GET("/attempts/:id/logs", handlers.Proctoring.ListAttemptLogs)
		proctorAPI.POST("/attempts/:id/terminate", handlers.Proctoring.TerminateAttempt)
		proctorAPI.PUT("/logs/:id/review", handlers.Proctoring.ReviewLog)
	}

	// ─── 6. Admin Group (JWT + Session + Role) ─────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAuth(authService),
		middleware.CheckSession(authService),
		middleware.RequireRoles(model.RoleAdmin),
	)
	{
		// User management
		adminAPI.GET("/users", handlers.AdminUser.ListUsers)
		adminAPI.GET("/users/proctors", handlers.AdminUser.ListProctors)
		adminAPI.PUT("/users/:id/role", handlers.AdminUser.UpdateRole)
		adminAPI.DELETE("/users/:id", handlers.AdminUser.DeleteUser)

		// Question bank
		adminAPI.GET("/questions", handlers.Question.ListQuestions)
		adminAPI.POST("/questions", handlers.Question.CreateQuestion)
		adminAPI.POST("/questions/bulk", handlers.Question.BulkCreateQuestions)
		adminAPI.GET("/questions/categories", handlers.Question.ListCategories)
		adminAPI.GET("/questions/topics", handlers.Question.ListTopics)
		adminAPI.GET("/questions/stats", handlers.Question.QuestionStats)
		adminAPI.GET("/questions/:id", handlers.Question.GetQuestion)
		adminAPI.PUT("/questions/:id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:id", handlers.Question.RetireQuestion)

		// Exam management
		adminAPI.GET("/exams", handlers.Exam.ListExams)
		adminAPI.POST("/exams", handlers.Exam.CreateExam)
		adminAPI.GET("/exams/stats", handlers.Exam.ExamStats)
		adminAPI.GET("/exams/:id", handlers.Exam.GetExam)
		adminAPI.PUT("/exams/:id", handlers.Exam.UpdateExam)
		adminAPI.DELETE("/exams/:id", handlers.Exam.DeleteExam)
		adminAPI.GET("/exams/:id/questions", handlers.Exam.ListExamQuestions)
		adminAPI.PUT("/exams/:id/questions", handlers.Exam.SetExamQuestions)
		adminAPI.POST("/exams/:id/questions", handlers.Exam.AddExamQuestions)
		adminAPI.DELETE("/exams/:id/questions/:question_id", handlers.Exam.RemoveExamQuestion)
		adminAPI.PUT("/exams/:id/proctors", handlers.Exam.AssignProctors)
		adminAPI.DELETE("/exams/:id/proctors/:proctor_id", handlers.Exam.RemoveProctor)
		adminAPI.GET("/exams/:id/students", handlers.Exam.ExamRoster)
		adminAPI.POST("/exams/:id/reminders", handlers.Exam.SendReminders)
		adminAPI.GET("/exams/:id/attempts", handlers.Attempt.ListExamAttempts)

		// Grading
		adminAPI.GET("/grading/pending", handlers.Grading.ListPendingGrading)
		adminAPI.PUT("/attempts/:id/answers/:answer_id/grade", handlers.Grading.GradeAnswer)
		adminAPI.PUT("/attempts/:id/grade", handlers.Grading.BulkGrade)
		adminAPI.PUT("/attempts/:id/feedback", handlers.Grading.SetFeedback)
		adminAPI.GET("/attempts/:id/result", handlers.Attempt.GetResult)

		// Analytics
		adminAPI.GET("/analytics/dashboard", handlers.Analytics.Dashboard)
		adminAPI.GET("/analytics/exams/:id", handlers.Analytics.ExamAnalytics)
		adminAPI.GET("/analytics/exams/:id/export", handlers.Analytics.ExportResults)
		adminAPI.GET("/analytics/students/:id", handlers.Analytics.StudentAnalytics)
	}

	return router
}
