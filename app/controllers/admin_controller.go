package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/app/repository"
	"github.com/civixhq/civix/internal/pkg/jobqueue"
	"github.com/civixhq/civix/internal/pkg/statistics"
)

// HandleAdminStats returns the cached dashboard counters.
func HandleAdminStats(c *fiber.Ctx) error {
	return c.JSON(statistics.GetStatisticsData())
}

// HandleAdminQueueStats exposes background job queue health.
func HandleAdminQueueStats(c *fiber.Ctx) error {
	queue := jobqueue.GetManager().GetQueue()
	ctx := c.Context()

	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load queue stats"})
	}
	queueSize, err := queue.GetQueueSize(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load queue size"})
	}
	processingSize, err := queue.GetProcessingSize(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load processing size"})
	}

	return c.JSON(fiber.Map{
		"running":    jobqueue.GetManager().IsRunning(),
		"stats":      stats,
		"queued":     queueSize,
		"processing": processingSize,
	})
}

// HandleAdminUserList returns a paginated account listing.
func HandleAdminUserList(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetUserRepository()

	users, err := repo.List(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list users"})
	}
	total, err := repo.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count users"})
	}

	return c.JSON(fiber.Map{
		"users":  users,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

type createStaffRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// HandleAdminUserCreate provisions a staff account (officer, moderator or
// admin). Citizen accounts come through self-registration instead.
func HandleAdminUserCreate(c *fiber.Ctx) error {
	var req createStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	switch req.Role {
	case models.ROLE_OFFICER, models.ROLE_MODERATOR, models.ROLE_ADMIN:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "role must be officer, moderator or admin"})
	}
	if req.Role == models.ROLE_OFFICER && req.Department == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "officers require a department"})
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	user.Role = req.Role
	user.Department = req.Department

	repo := repository.GetGlobalFactory().GetUserRepository()
	if existing, err := repo.GetByEmail(req.Email); err == nil && existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "An account with this email already exists"})
	}
	if err := repo.Create(user); err != nil {
		log.Errorf("[Admin] failed to create staff account %s: %v", req.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create account"})
	}

	log.Infof("[Admin] created %s account %s (id %d)", user.Role, user.Email, user.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"role":       user.Role,
		"department": user.Department,
	})
}
