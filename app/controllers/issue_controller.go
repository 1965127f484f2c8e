package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/app/repository"
	counter "github.com/civixhq/civix/internal/pkg/metrics/counter"
	"github.com/civixhq/civix/internal/pkg/usercontext"
	"github.com/civixhq/civix/internal/pkg/workflow"
)

// HandleIssueCreate accepts a new citizen report as a multipart form so an
// optional photo can ride along. Anyone may report; a session enriches the
// report with the reporter's account.
func HandleIssueCreate(c *fiber.Ctx) error {
	title := c.FormValue("title")
	description := c.FormValue("description")

	issue := models.NewIssue(title, description)
	issue.Location = c.FormValue("location")
	issue.ReporterEmail = c.FormValue("reporter_email")
	issue.NotifyByEmail = c.FormValue("notify_by_email") == "true"
	issue.IsPrivate = c.FormValue("is_private") == "true"

	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn {
		reporterID := userCtx.UserID
		issue.ReporterID = &reporterID
		if issue.ReporterEmail == "" {
			issue.ReporterEmail = userCtx.Email
		}
	}

	if err := issue.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	if issue.NotifyByEmail && issue.ReporterEmail == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Email notifications require a reporter email"})
	}

	if file, err := c.FormFile("photo"); err == nil && file != nil {
		store, err := getProofStore()
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Photo storage is not available"})
		}
		src, err := file.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Failed to read photo upload"})
		}
		defer src.Close()

		stored, err := store.StoreProof(c.Context(), src, file.Filename)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
		}
		issue.PhotoKey = stored.Key
	}

	repo := repository.GetGlobalFactory().GetIssueRepository()
	if err := repo.Create(issue); err != nil {
		log.Errorf("[Issue] failed to create issue: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create issue"})
	}

	log.Infof("[Issue] created issue %s (%q)", issue.PublicID, issue.Title)
	return c.Status(fiber.StatusCreated).JSON(issue)
}

// HandleIssueGet returns one issue by its public reference. Private issues
// are visible only to their reporter and staff.
func HandleIssueGet(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	if issue.IsPrivate && !canViewPrivate(c, issue) {
		// Indistinguishable from a missing issue on purpose
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Issue not found"})
	}

	if err := counter.AddIssueView(issue.ID); err != nil {
		log.Warnf("[Issue] failed to record view for issue %d: %v", issue.ID, err)
	}

	return c.JSON(issue)
}

// HandleIssueList returns a paginated issue listing with an optional status
// filter. Private issues are filtered out for non-staff callers.
func HandleIssueList(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetIssueRepository()

	var (
		issues []models.Issue
		total  int64
		err    error
	)
	if status := c.Query("status"); status != "" {
		issues, err = repo.ListByStatus(status, offset, limit)
		if err == nil {
			total, err = repo.CountByStatus(status)
		}
	} else {
		issues, err = repo.List(offset, limit)
		if err == nil {
			total, err = repo.Count()
		}
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list issues"})
	}

	userCtx := usercontext.GetUserContext(c)
	staff := userCtx.Role == models.ROLE_OFFICER || userCtx.Role == models.ROLE_MODERATOR || userCtx.Role == models.ROLE_ADMIN
	if !staff {
		visible := make([]models.Issue, 0, len(issues))
		for _, issue := range issues {
			if issue.IsPrivate && !(issue.ReporterID != nil && userCtx.IsLoggedIn && *issue.ReporterID == userCtx.UserID) {
				continue
			}
			visible = append(visible, issue)
		}
		issues = visible
	}

	return c.JSON(fiber.Map{
		"issues": issues,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// HandleMyIssues lists the authenticated reporter's own issues.
func HandleMyIssues(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.Email == "" {
		return c.JSON(fiber.Map{"issues": []models.Issue{}})
	}

	issues, err := repository.GetGlobalFactory().GetIssueRepository().ListByReporterEmail(userCtx.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list issues"})
	}
	return c.JSON(fiber.Map{"issues": issues})
}

// HandleAssignedIssues lists the open issues assigned to the calling officer.
func HandleAssignedIssues(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	issues, err := repository.GetGlobalFactory().GetIssueRepository().ListAssignedTo(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list assigned issues"})
	}
	return c.JSON(fiber.Map{"issues": issues})
}

type transitionRequest struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

// HandleIssueTransition applies a requested status change through the
// workflow state machine.
func HandleIssueTransition(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Target status is required"})
	}

	updated, err := getWorkflowService().Transition(issue.ID, currentActor(c), workflow.Request{
		NewStatus: req.Status,
		Remarks:   req.Remarks,
	})
	if err != nil {
		return workflowErrorResponse(c, err)
	}
	return c.JSON(updated)
}

type assignRequest struct {
	OfficerID uint `json:"officer_id"`
	Score     int  `json:"score"`
	Manual    bool `json:"manual"`
}

// HandleIssueAssign assigns an officer picked by the moderator, either from
// the suggestion list (score carried over) or manually.
func HandleIssueAssign(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if req.OfficerID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "officer_id is required"})
	}

	updated, err := getWorkflowService().Assign(issue.ID, currentActor(c), req.OfficerID, req.Score, req.Manual)
	if err != nil {
		return workflowErrorResponse(c, err)
	}
	return c.JSON(updated)
}

// HandleIssueSuggestOfficers returns the ranked officer suggestions for an
// issue. Pure read; nothing is assigned.
func HandleIssueSuggestOfficers(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	suggestions, err := getWorkflowService().SuggestOfficers(issue.ID, currentActor(c))
	if err != nil {
		return workflowErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"suggestions": suggestions})
}

// HandleIssueUpvote records a community upvote. Counted in Redis and flushed
// to the issues table in batches.
func HandleIssueUpvote(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	if err := counter.AddIssueUpvote(issue.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to record upvote"})
	}
	return c.JSON(fiber.Map{"message": "upvote recorded"})
}

// HandleIssueDelete removes an issue entirely. Admin only; the workflow
// prefers Rejected over deletion, this exists for takedowns.
func HandleIssueDelete(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	if err := getWorkflowService().DeleteIssue(issue.ID, currentActor(c)); err != nil {
		return workflowErrorResponse(c, err)
	}

	log.Infof("[Issue] admin %s deleted issue %s", usercontext.GetUsername(c), issue.PublicID)
	return c.JSON(fiber.Map{"message": "issue deleted", "id": issue.PublicID})
}

// canViewPrivate reports whether the caller may see a private issue.
func canViewPrivate(c *fiber.Ctx, issue *models.Issue) bool {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return false
	}
	switch userCtx.Role {
	case models.ROLE_OFFICER, models.ROLE_MODERATOR, models.ROLE_ADMIN:
		return true
	}
	if issue.ReporterID != nil && *issue.ReporterID == userCtx.UserID {
		return true
	}
	return issue.ReporterEmail != "" && issue.ReporterEmail == userCtx.Email
}
