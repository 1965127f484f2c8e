package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civixhq/civix/internal/pkg/middleware"
)

// ServerInterface is the full /api/v1 surface. The OpenAPI document under
// public/docs/v1/openapi.yml describes the same routes for consumers.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error
	GetStats(c *fiber.Ctx) error

	PostRegister(c *fiber.Ctx) error
	PostLogin(c *fiber.Ctx) error
	PostLogout(c *fiber.Ctx) error
	GetUserProfile(c *fiber.Ctx) error
	PostAPIKeyGenerate(c *fiber.Ctx) error
	GetMyIssues(c *fiber.Ctx) error

	PostIssue(c *fiber.Ctx) error
	GetIssues(c *fiber.Ctx) error
	GetIssue(c *fiber.Ctx) error
	PostIssueUpvote(c *fiber.Ctx) error
	PatchIssueStatus(c *fiber.Ctx) error

	PostIssueAssign(c *fiber.Ctx) error
	GetIssueSuggestions(c *fiber.Ctx) error
	PostIssueAnalyze(c *fiber.Ctx) error
	GetIssueDuplicates(c *fiber.Ctx) error
	PostResolutionReview(c *fiber.Ctx) error

	GetAssignedIssues(c *fiber.Ctx) error
	PostResolutionSubmit(c *fiber.Ctx) error

	PostResolutionAcknowledge(c *fiber.Ctx) error
	GetAcknowledgeByToken(c *fiber.Ctx) error
	PostResolutionFeedback(c *fiber.Ctx) error
	GetProofImage(c *fiber.Ctx) error

	GetNotifications(c *fiber.Ctx) error
	GetNotificationsUnreadCount(c *fiber.Ctx) error
	PostNotificationRead(c *fiber.Ctx) error

	GetAdminStats(c *fiber.Ctx) error
	GetAdminQueueStats(c *fiber.Ctx) error
	GetAdminUsers(c *fiber.Ctx) error
	PostAdminUser(c *fiber.Ctx) error
	DeleteAdminIssue(c *fiber.Ctx) error
}

// RegisterHandlers attaches the v1 routes with their auth requirements.
// Sessions and API keys are interchangeable: the optional API key middleware
// fills the user context when a key is presented, and the per-route
// requirements decide what role is needed.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	router.Use(middleware.APIKeyOptionalMiddleware())

	router.Get("/ping", si.GetPing)
	router.Get("/stats", si.GetStats)

	// Accounts and sessions
	router.Post("/auth/register", si.PostRegister)
	router.Post("/auth/login", si.PostLogin)
	router.Post("/auth/logout", middleware.RequireAuth, si.PostLogout)
	router.Get("/me", middleware.RequireAuth, si.GetUserProfile)
	router.Post("/me/api-key", middleware.RequireAuth, si.PostAPIKeyGenerate)
	router.Get("/me/issues", middleware.RequireAuth, si.GetMyIssues)

	// Issue reporting and browsing; reporting is open to anonymous citizens
	router.Post("/issues", si.PostIssue)
	router.Get("/issues", si.GetIssues)
	router.Get("/issues/:public_id", si.GetIssue)
	router.Post("/issues/:public_id/upvote", si.PostIssueUpvote)

	// Workflow transitions; the state machine enforces the acting role per edge
	router.Patch("/issues/:public_id/status", middleware.RequireAuth, si.PatchIssueStatus)

	// Moderation
	router.Post("/issues/:public_id/assign", middleware.RequireModerator, si.PostIssueAssign)
	router.Get("/issues/:public_id/suggest-officers", middleware.RequireModerator, si.GetIssueSuggestions)
	router.Post("/issues/:public_id/analyze", middleware.RequireModerator, si.PostIssueAnalyze)
	router.Get("/issues/:public_id/duplicates", middleware.RequireModerator, si.GetIssueDuplicates)
	router.Post("/issues/:public_id/review", middleware.RequireModerator, si.PostResolutionReview)

	// Officer close-out
	router.Get("/officer/issues", middleware.RequireOfficer, si.GetAssignedIssues)
	router.Post("/issues/:public_id/resolution", middleware.RequireOfficer, si.PostResolutionSubmit)

	// Reporter follow-up on resolved issues
	router.Post("/issues/:public_id/acknowledge", middleware.RequireAuth, si.PostResolutionAcknowledge)
	router.Post("/issues/:public_id/feedback", middleware.RequireAuth, si.PostResolutionFeedback)
	router.Get("/issues/:public_id/proof", middleware.RequireAuth, si.GetProofImage)
	router.Get("/public/acknowledge", si.GetAcknowledgeByToken)

	// Notifications
	router.Get("/notifications", middleware.RequireAuth, si.GetNotifications)
	router.Get("/notifications/unread-count", middleware.RequireAuth, si.GetNotificationsUnreadCount)
	router.Post("/notifications/:id/read", middleware.RequireAuth, si.PostNotificationRead)

	// Admin
	admin := router.Group("/admin", middleware.RequireAdmin)
	admin.Get("/stats", si.GetAdminStats)
	admin.Get("/queue", si.GetAdminQueueStats)
	admin.Get("/users", si.GetAdminUsers)
	admin.Post("/users", si.PostAdminUser)
	admin.Delete("/issues/:public_id", si.DeleteAdminIssue)
}
