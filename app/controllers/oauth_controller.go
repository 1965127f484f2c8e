package controllers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/app/repository"
	"github.com/civixhq/civix/internal/pkg/session"
)

// HandleOAuthCallback completes the provider flow and logs the user in.
// OAuth accounts are always citizen accounts; staff roles stay
// password-and-session only.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	repo := repository.GetGlobalFactory().GetUserRepository()

	appUser, err := repo.GetByProvider(u.Provider, u.UserID)
	if err != nil {
		// No linked account yet; match by email where the provider shares one.
		if u.Email != "" {
			appUser, _ = repo.GetByEmail(u.Email)
		}
		if appUser == nil {
			// Create new user; password is a random placeholder since
			// validation requires one (never usable for login).
			placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
			hash, _ := models.HashPassword(placeholder)
			email := u.Email
			if email == "" {
				// Ensure unique, non-empty email to satisfy the unique index
				email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
			}
			appUser = &models.User{
				Name:       firstNonEmpty(u.Name, u.NickName, u.Email, "Citizen"),
				Email:      email,
				Password:   hash,
				Role:       models.ROLE_USER,
				Status:     models.STATUS_ACTIVE,
				TrustScore: models.DefaultTrustScore,
				AvatarURL:  u.AvatarURL,
				Provider:   u.Provider,
				ProviderID: u.UserID,
			}
			if err := repo.Create(appUser); err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create user failed: %v", err))
			}
		} else if appUser.Provider == "" {
			// Link the provider to the existing email-matched account
			appUser.Provider = u.Provider
			appUser.ProviderID = u.UserID
			if appUser.AvatarURL == "" {
				appUser.AvatarURL = u.AvatarURL
			}
			if err := repo.Update(appUser); err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("link provider failed: %v", err))
			}
		}
	}

	if !appUser.IsActive() {
		return c.Status(fiber.StatusForbidden).SendString("account is not active")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session init failed")
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, appUser.ID)
	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}
	session.SetSessionValue(c, USER_NAME, appUser.Name)
	session.SetSessionValue(c, USER_EMAIL, appUser.Email)
	session.SetSessionValue(c, USER_ROLE, appUser.Role)

	now := time.Now()
	appUser.LastLoginAt = &now
	appUser.IPv4, appUser.IPv6 = GetClientIP(c)
	if err := repo.Update(appUser); err != nil {
		log.Warnf("[OAuth] failed to update login metadata for user %d: %v", appUser.ID, err)
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
