package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/app/repository"
	"github.com/civixhq/civix/internal/pkg/env"
	"github.com/civixhq/civix/internal/pkg/security"
	"github.com/civixhq/civix/internal/pkg/workflow"
)

// HandleResolutionSubmit takes the officer's close-out as a multipart form:
// a mandatory proof photo plus officer notes. Moves the issue into
// Pending Review.
func HandleResolutionSubmit(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	notes := c.FormValue("notes")
	file, err := c.FormFile("proof")
	if err != nil || file == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "A proof photo is required"})
	}

	store, err := getProofStore()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Proof storage is not available"})
	}
	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Failed to read proof upload"})
	}
	defer src.Close()

	stored, err := store.StoreProof(c.Context(), src, file.Filename)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	updated, err := getWorkflowService().SubmitResolution(issue.ID, currentActor(c), workflow.ResolutionData{
		ProofKey:      stored.Key,
		ProofThumbKey: stored.ThumbKey,
		ProofTakenAt:  stored.TakenAt,
		OfficerNotes:  notes,
	})
	if err != nil {
		// The transition failed; don't leave the orphaned proof behind
		if delErr := store.Delete(c.Context(), stored.Key); delErr != nil {
			log.Warnf("[Resolution] failed to clean up orphaned proof %s: %v", stored.Key, delErr)
		}
		if delErr := store.Delete(c.Context(), stored.ThumbKey); delErr != nil {
			log.Warnf("[Resolution] failed to clean up orphaned thumb %s: %v", stored.ThumbKey, delErr)
		}
		return workflowErrorResponse(c, err)
	}

	return c.JSON(updated)
}

type reviewRequest struct {
	Approved bool   `json:"approved"`
	Remarks  string `json:"remarks"`
}

// HandleResolutionReview lets a moderator approve (Resolved) or reject
// (back to In Progress, remarks required) a submitted resolution.
func HandleResolutionReview(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	updated, err := getWorkflowService().ReviewResolution(issue.ID, currentActor(c), req.Approved, req.Remarks)
	if err != nil {
		return workflowErrorResponse(c, err)
	}
	return c.JSON(updated)
}

type acknowledgeRequest struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

// HandleResolutionAcknowledge records the logged-in reporter's confirm or
// dispute verdict on a resolved issue.
func HandleResolutionAcknowledge(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	var req acknowledgeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	updated, err := getWorkflowService().Acknowledge(issue.ID, currentActor(c), req.Status, req.Remarks)
	if err != nil {
		return workflowErrorResponse(c, err)
	}
	return c.JSON(updated)
}

// HandleResolutionAcknowledgeByToken is the email-link flow: an account-less
// reporter proves their identity through the signed token from the
// resolution email.
func HandleResolutionAcknowledgeByToken(c *fiber.Ctx) error {
	token := c.Query("token")
	status := c.Query("status")
	if token == "" || status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "token and status are required"})
	}

	secret := env.GetEnv("APP_SECRET", "")
	claims, err := security.VerifyAckToken(token, secret)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or expired link"})
	}

	repoIssue, err := issueByPublicID(claims.IssuePublicID)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	actor := workflow.Actor{
		Name:  "Reporter",
		Email: claims.ReporterEmail,
	}
	updated, err := getWorkflowService().Acknowledge(repoIssue.ID, actor, status, c.Query("remarks"))
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "acknowledgement recorded",
		"status":  updated.Resolution.Acknowledgement.Status,
	})
}

type feedbackRequest struct {
	Stars   int    `json:"stars"`
	Comment string `json:"comment"`
}

// HandleResolutionFeedback records the reporter's one-time star rating of the
// handling officer.
func HandleResolutionFeedback(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	var req feedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	updated, err := getWorkflowService().RateResolution(issue.ID, currentActor(c), req.Stars, req.Comment)
	if err != nil {
		return workflowErrorResponse(c, err)
	}
	return c.JSON(updated)
}

// HandleProofImage streams a stored proof photo (or its thumbnail with
// ?thumb=true). Restricted to staff and the issue's reporter.
func HandleProofImage(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	if !canViewPrivate(c, issue) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not allowed to view this proof"})
	}
	if issue.Resolution == nil || issue.Resolution.ProofKey == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No proof on file"})
	}

	key := issue.Resolution.ProofKey
	if c.Query("thumb") == "true" && issue.Resolution.ProofThumbKey != "" {
		key = issue.Resolution.ProofThumbKey
	}

	store, err := getProofStore()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Proof storage is not available"})
	}

	body, contentType, err := store.Open(c.Context(), key)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Proof object not found"})
	}

	c.Set(fiber.HeaderContentType, contentType)
	return c.SendStream(body)
}

// issueByPublicID loads an issue outside the route-parameter path (token
// flows carry the id in the token itself).
func issueByPublicID(publicID string) (*models.Issue, error) {
	return repository.GetGlobalFactory().GetIssueRepository().GetByPublicID(publicID)
}
