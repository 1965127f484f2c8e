package controllers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/civixhq/civix/internal/pkg/cache"
	"github.com/civixhq/civix/internal/pkg/workflow"
)

// duplicateCacheTTL bounds how long a duplicate-check result is reused before
// the similarity backend is asked again.
const duplicateCacheTTL = 10 * time.Minute

// HandleIssueAnalyze runs the AI triage (priority, fake detection,
// categorization) over the issue and stores the verdict. Advisory only:
// status never changes here.
func HandleIssueAnalyze(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	analysis, err := getWorkflowService().Analyze(c.Context(), issue.ID, currentActor(c))
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	// A fresh verdict invalidates any cached duplicate result for this issue
	if err := cache.Delete(duplicateCacheKey(issue.PublicID)); err != nil {
		log.Warnf("[Moderator] failed to drop duplicate cache for issue %s: %v", issue.PublicID, err)
	}

	return c.JSON(analysis)
}

// HandleIssueCheckDuplicates queries the similarity backend for likely
// duplicates among the active issues. Results are cached briefly; a backend
// failure is 503, never an empty result.
func HandleIssueCheckDuplicates(c *fiber.Ctx) error {
	issue, err := issueByParam(c)
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	key := duplicateCacheKey(issue.PublicID)
	if c.Query("refresh") != "true" {
		var cached workflow.DuplicateResult
		if err := cache.GetJSON(key, &cached); err == nil {
			return c.JSON(fiber.Map{"result": cached, "cached": true})
		}
	}

	result, err := getWorkflowService().FindDuplicates(c.Context(), issue.ID, currentActor(c))
	if err != nil {
		return workflowErrorResponse(c, err)
	}

	if err := cache.SetJSON(key, result, duplicateCacheTTL); err != nil {
		log.Warnf("[Moderator] failed to cache duplicate result for issue %s: %v", issue.PublicID, err)
	}

	return c.JSON(fiber.Map{"result": result, "cached": false})
}

func duplicateCacheKey(publicID string) string {
	return fmt.Sprintf("issues:duplicates:%s", publicID)
}
