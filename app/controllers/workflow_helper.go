package controllers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/app/repository"
	"github.com/civixhq/civix/internal/pkg/mlclient"
	"github.com/civixhq/civix/internal/pkg/notify"
	"github.com/civixhq/civix/internal/pkg/proofstorage"
	"github.com/civixhq/civix/internal/pkg/usercontext"
	"github.com/civixhq/civix/internal/pkg/workflow"
)

var (
	workflowOnce sync.Once
	workflowSvc  *workflow.Service
)

// getWorkflowService wires the workflow service from the global repositories,
// the ML inference client and the notification dispatcher. Built lazily so the
// repository factory is guaranteed to be initialized first.
func getWorkflowService() *workflow.Service {
	workflowOnce.Do(func() {
		repos := repository.GetGlobalRepositories()
		ml := mlclient.NewClient(mlclient.ConfigFromEnv())
		dispatcher := notify.NewDispatcher(repos.User, repos.Notification)
		workflowSvc = workflow.NewService(repos.Issue, repos.User, ml, ml, dispatcher)
	})
	return workflowSvc
}

var (
	proofStoreOnce sync.Once
	proofStore     *proofstorage.Store
	proofStoreErr  error
)

// getProofStore returns the shared S3 proof store, or an error when proof
// storage is disabled or unreachable.
func getProofStore() (*proofstorage.Store, error) {
	proofStoreOnce.Do(func() {
		cfg, err := proofstorage.LoadConfig()
		if err != nil {
			proofStoreErr = err
			return
		}
		if !cfg.IsEnabled() {
			proofStoreErr = errors.New("proof storage is not enabled")
			return
		}
		proofStore, proofStoreErr = proofstorage.NewStore(cfg)
	})
	return proofStore, proofStoreErr
}

// currentActor builds the workflow actor from the request's user context.
// Role comes from the server-side session or API key, never from the client.
func currentActor(c *fiber.Ctx) workflow.Actor {
	userCtx := usercontext.GetUserContext(c)
	return workflow.Actor{
		UserID: userCtx.UserID,
		Name:   userCtx.Username,
		Email:  userCtx.Email,
		Role:   userCtx.Role,
	}
}

// workflowErrorResponse maps workflow sentinel errors onto HTTP failures.
func workflowErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.Is(err, workflow.ErrUnauthorizedActor):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": err.Error(),
		})
	case errors.Is(err, workflow.ErrMissingRequiredField):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": err.Error(),
		})
	case errors.Is(err, workflow.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "invalid_transition",
			"message": err.Error(),
		})
	case errors.Is(err, workflow.ErrConcurrentModification):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "conflict",
			"message": "the issue was modified concurrently, reload and retry",
		})
	case errors.Is(err, workflow.ErrClassifierUnavailable), errors.Is(err, workflow.ErrDetectionUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "service_unavailable",
			"message": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "operation failed",
		})
	}
}

// issueByParam loads an issue by the public_id route parameter. Errors are
// workflow sentinels, ready for workflowErrorResponse.
func issueByParam(c *fiber.Ctx) (*models.Issue, error) {
	publicID := c.Params("public_id")
	if publicID == "" {
		return nil, fmt.Errorf("%w: issue id", workflow.ErrMissingRequiredField)
	}
	return repository.GetGlobalFactory().GetIssueRepository().GetByPublicID(publicID)
}
