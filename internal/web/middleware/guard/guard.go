// Package guard provides Fiber middleware enforcing module capabilities
// on routes. Every protected route names the module and capability it
// requires; the access guard decides, and denials render the denial page
// instead of the requested one.
package guard

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler"
	"github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

// TemplateDenied is the template rendered when access is denied.
const TemplateDenied = "denied"

// RequireCapability creates Fiber middleware that requires a module capability.
func RequireCapability(g *authz.Guard, module authz.Module, capability authz.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessData, _, err := session.Current(c)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("no valid session for protected route")

			return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
		}

		decision := g.Check(sessData.Subject(), sessData.Context(), authz.Request{
			Module:     module,
			Capability: capability,
		})

		if !decision.Allowed {
			return c.Status(fiber.StatusForbidden).Render(TemplateDenied, fiber.Map{
				"Requirement": string(module) + "." + string(capability),
				"Reason":      decision.Reason,
				"CurrentUser": sessData.User,
			}, handler.BaseLayout)
		}

		return c.Next()
	}
}
