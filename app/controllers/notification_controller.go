package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/civixhq/civix/app/repository"
	"github.com/civixhq/civix/internal/pkg/usercontext"
)

// HandleNotificationsList returns the caller's in-app notifications, newest
// first.
func HandleNotificationsList(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	userID := usercontext.GetUserID(c)

	repo := repository.GetGlobalFactory().GetNotificationRepository()
	notifications, err := repo.ListByUser(userID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list notifications"})
	}

	unread, err := repo.CountUnread(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count notifications"})
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"unread":        unread,
	})
}

// HandleNotificationsUnreadCount returns the caller's unread counter for
// badge rendering.
func HandleNotificationsUnreadCount(c *fiber.Ctx) error {
	unread, err := repository.GetGlobalFactory().GetNotificationRepository().CountUnread(usercontext.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count notifications"})
	}
	return c.JSON(fiber.Map{"unread": unread})
}

// HandleNotificationMarkRead marks one of the caller's notifications as read.
// Scoped to the caller, so one user can never touch another's notifications.
func HandleNotificationMarkRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid notification id"})
	}

	if err := repository.GetGlobalFactory().GetNotificationRepository().MarkRead(uint(id), usercontext.GetUserID(c)); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Notification not found"})
	}
	return c.JSON(fiber.Map{"message": "marked as read"})
}
