package router

import (
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/civixhq/civix/app/controllers"
	"github.com/civixhq/civix/internal/pkg/constants"
	"github.com/civixhq/civix/internal/pkg/middleware"
	"github.com/civixhq/civix/internal/pkg/oauth"
	"github.com/civixhq/civix/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// OAuth entry points live outside /api so the goth session store can
	// manage its own cookies without colliding with the app session.
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	app.Get(constants.PublicRoute, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "civix",
			"status":  "ok",
		})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
