package api

import (
	"campuscloud/backend/internal/domain"
	"campuscloud/backend/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	fileService service.FileService,
	shareService service.ShareService,
	submissionService service.SubmissionService,
) {
	authHandler := NewAuthHandler(authService)
	fileHandler := NewFileHandler(fileService)
	shareHandler := NewShareHandler(shareService)
	assignmentHandler := NewAssignmentHandler(submissionService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- File Routes ---
		fileGroup := protected.Group("/files")
		{
			// POST /api/v1/files/upload-url
			fileGroup.POST("/upload-url", fileHandler.ReserveUpload)
			// POST /api/v1/files/{fileId}/complete
			fileGroup.POST("/:fileId/complete", fileHandler.CompleteUpload)
			// GET /api/v1/files
			fileGroup.GET("", fileHandler.GetMyFiles)
			// GET /api/v1/files/{fileId}/download-url
			fileGroup.GET("/:fileId/download-url", fileHandler.GetDownloadURL)
			// DELETE /api/v1/files/{fileId}
			fileGroup.DELETE("/:fileId", fileHandler.DeleteFile)

			// --- Sharing on a file ---
			// POST /api/v1/files/{fileId}/share
			fileGroup.POST("/:fileId/share", shareHandler.CreateShares)
			// GET /api/v1/files/{fileId}/shares
			fileGroup.GET("/:fileId/shares", shareHandler.ListShares)
			// DELETE /api/v1/files/{fileId}/shares/{shareId}
			fileGroup.DELETE("/:fileId/shares/:shareId", shareHandler.RevokeShare)
		}

		// GET /api/v1/shared-with-me
		protected.GET("/shared-with-me", shareHandler.SharedWithMe)

		// --- Assignment Routes ---
		assignmentGroup := protected.Group("/assignments")
		{
			// POST /api/v1/assignments - Only instructors can create
			assignmentGroup.POST("", RoleMiddleware(domain.RoleInstructor), assignmentHandler.CreateAssignment)
			// GET /api/v1/assignments/{assignmentId}
			assignmentGroup.GET("/:assignmentId", assignmentHandler.GetAssignment)

			// POST /api/v1/assignments/{assignmentId}/submit - Students submit work
			assignmentGroup.POST("/:assignmentId/submit", RoleMiddleware(domain.RoleStudent), assignmentHandler.SubmitAssignment)
			// GET /api/v1/assignments/{assignmentId}/submissions - Instructor view
			assignmentGroup.GET("/:assignmentId/submissions", RoleMiddleware(domain.RoleInstructor, domain.RoleAdmin), assignmentHandler.ListSubmissions)
			// GET /api/v1/assignments/{assignmentId}/submissions/me - Student's own attempts
			assignmentGroup.GET("/:assignmentId/submissions/me", assignmentHandler.MySubmissions)
			// PUT /api/v1/assignments/{assignmentId}/submissions/{submissionId}/grade
			assignmentGroup.PUT("/:assignmentId/submissions/:submissionId/grade", RoleMiddleware(domain.RoleInstructor, domain.RoleAdmin), assignmentHandler.GradeSubmission)
		}
	}
}
