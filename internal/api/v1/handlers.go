package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/civixhq/civix/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetStats returns the public dashboard counters.
func (s *APIServer) GetStats(c *fiber.Ctx) error {
	return controllers.HandleAdminStats(c)
}

func (s *APIServer) PostRegister(c *fiber.Ctx) error {
	return controllers.HandleRegister(c)
}

func (s *APIServer) PostLogin(c *fiber.Ctx) error {
	return controllers.HandleLogin(c)
}

func (s *APIServer) PostLogout(c *fiber.Ctx) error {
	return controllers.HandleLogout(c)
}

// GetUserProfile returns account information for the authenticated user
// (session or API key).
func (s *APIServer) GetUserProfile(c *fiber.Ctx) error {
	return controllers.HandleGetUserAccount(c)
}

func (s *APIServer) PostAPIKeyGenerate(c *fiber.Ctx) error {
	return controllers.HandleUserAPIKeyGenerate(c)
}

func (s *APIServer) GetMyIssues(c *fiber.Ctx) error {
	return controllers.HandleMyIssues(c)
}

func (s *APIServer) PostIssue(c *fiber.Ctx) error {
	return controllers.HandleIssueCreate(c)
}

func (s *APIServer) GetIssues(c *fiber.Ctx) error {
	return controllers.HandleIssueList(c)
}

func (s *APIServer) GetIssue(c *fiber.Ctx) error {
	return controllers.HandleIssueGet(c)
}

func (s *APIServer) PostIssueUpvote(c *fiber.Ctx) error {
	return controllers.HandleIssueUpvote(c)
}

func (s *APIServer) PatchIssueStatus(c *fiber.Ctx) error {
	return controllers.HandleIssueTransition(c)
}

func (s *APIServer) PostIssueAssign(c *fiber.Ctx) error {
	return controllers.HandleIssueAssign(c)
}

func (s *APIServer) GetIssueSuggestions(c *fiber.Ctx) error {
	return controllers.HandleIssueSuggestOfficers(c)
}

func (s *APIServer) PostIssueAnalyze(c *fiber.Ctx) error {
	return controllers.HandleIssueAnalyze(c)
}

func (s *APIServer) GetIssueDuplicates(c *fiber.Ctx) error {
	return controllers.HandleIssueCheckDuplicates(c)
}

func (s *APIServer) PostResolutionReview(c *fiber.Ctx) error {
	return controllers.HandleResolutionReview(c)
}

func (s *APIServer) GetAssignedIssues(c *fiber.Ctx) error {
	return controllers.HandleAssignedIssues(c)
}

func (s *APIServer) PostResolutionSubmit(c *fiber.Ctx) error {
	return controllers.HandleResolutionSubmit(c)
}

func (s *APIServer) PostResolutionAcknowledge(c *fiber.Ctx) error {
	return controllers.HandleResolutionAcknowledge(c)
}

func (s *APIServer) GetAcknowledgeByToken(c *fiber.Ctx) error {
	return controllers.HandleResolutionAcknowledgeByToken(c)
}

func (s *APIServer) PostResolutionFeedback(c *fiber.Ctx) error {
	return controllers.HandleResolutionFeedback(c)
}

func (s *APIServer) GetProofImage(c *fiber.Ctx) error {
	return controllers.HandleProofImage(c)
}

func (s *APIServer) GetNotifications(c *fiber.Ctx) error {
	return controllers.HandleNotificationsList(c)
}

func (s *APIServer) GetNotificationsUnreadCount(c *fiber.Ctx) error {
	return controllers.HandleNotificationsUnreadCount(c)
}

func (s *APIServer) PostNotificationRead(c *fiber.Ctx) error {
	return controllers.HandleNotificationMarkRead(c)
}

func (s *APIServer) GetAdminStats(c *fiber.Ctx) error {
	return controllers.HandleAdminStats(c)
}

func (s *APIServer) GetAdminQueueStats(c *fiber.Ctx) error {
	return controllers.HandleAdminQueueStats(c)
}

func (s *APIServer) GetAdminUsers(c *fiber.Ctx) error {
	return controllers.HandleAdminUserList(c)
}

func (s *APIServer) PostAdminUser(c *fiber.Ctx) error {
	return controllers.HandleAdminUserCreate(c)
}

func (s *APIServer) DeleteAdminIssue(c *fiber.Ctx) error {
	return controllers.HandleIssueDelete(c)
}
