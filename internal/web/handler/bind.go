package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/web/navigation"
	"github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

// Bind merges the shared layout data (navigation, menu, current user)
// with the page specific data.
func Bind(sessData *session.Data, g *authz.Guard, nav *navigation.Context, page fiber.Map) fiber.Map {
	out := fiber.Map{
		"Navigation":  nav,
		"Menu":        navigation.Menu(g, sessData.Subject(), sessData.Context()),
		"CurrentUser": sessData.User,
		"ViewAsRole":  string(sessData.ViewAsRole),
	}

	for k, v := range page {
		out[k] = v
	}

	return out
}
