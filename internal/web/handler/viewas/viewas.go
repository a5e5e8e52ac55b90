// Package viewas provides the admin-only impersonation toggle. The chosen
// role is persisted in the session record and broadcast on the event bus;
// an SSE endpoint lets open pages react to the change without a reload.
package viewas

import (
	"bufio"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/events"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler"
	"github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

const (
	// Path is the base path for the impersonation toggle.
	Path = handler.RootPath + "viewas"
)

// Service provides the view-as toggle and its event stream.
type Service struct {
	handler.Service
	cfg *config.Config
	bus *events.Bus
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, bus *events.Bus) {
	if app == nil || cfg == nil || bus == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.bus = bus

	app.Post(Path, s.Set)
	app.Post(Path+"/clear", s.Clear)
	app.Get(Path+"/events", s.Events)
}

// Set stores the impersonated role in the session. Only admins may
// impersonate, and the admin role itself is not a valid target.
func (s *Service) Set(c *fiber.Ctx) error {
	sessData, sessID, err := session.Current(c)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	if sessData.User.Role != authz.RoleAdmin {
		return c.SendStatus(fiber.StatusForbidden)
	}

	role := authz.Role(c.FormValue("role"))
	if role == authz.RoleAdmin || !authz.KnownRole(role) {
		return c.Status(fiber.StatusBadRequest).SendString("Ongeldige rol")
	}

	sessData.ViewAsRole = role
	if err := sessData.Write(sessID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to persist view-as role")

		return c.SendStatus(fiber.StatusInternalServerError)
	}

	s.bus.Publish(events.ViewAsChanged{SessionID: sessID, Role: role})

	log.Info().
		Str("admin", sessData.User.Username).
		Str("role", string(role)).
		Msg("view-as enabled")

	return c.Redirect("/dashboard")
}

// Clear drops the impersonated role from the session.
func (s *Service) Clear(c *fiber.Ctx) error {
	sessData, sessID, err := session.Current(c)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	if sessData.User.Role != authz.RoleAdmin {
		return c.SendStatus(fiber.StatusForbidden)
	}

	sessData.ViewAsRole = ""
	if err := sessData.Write(sessID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to clear view-as role")

		return c.SendStatus(fiber.StatusInternalServerError)
	}

	s.bus.Publish(events.ViewAsChanged{SessionID: sessID})

	log.Info().Str("admin", sessData.User.Username).Msg("view-as cleared")

	return c.Redirect("/dashboard")
}

type roleEvent struct {
	Role string `json:"role"`
}

// Events streams view-as changes for the caller's own session as
// server-sent events. The stream ends when the bus subscription is
// cancelled server-side or the client disconnects.
func (s *Service) Events(c *fiber.Ctx) error {
	_, sessID, err := session.Current(c)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	ch, cancel := s.bus.Subscribe()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		for change := range ch {
			if change.SessionID != sessID {
				continue
			}

			payload, err := json.Marshal(roleEvent{Role: string(change.Role)})
			if err != nil {
				continue
			}

			if _, err := w.WriteString("event: viewas\ndata: " + string(payload) + "\n\n"); err != nil {
				return
			}

			if err := w.Flush(); err != nil {
				// Client went away.
				return
			}
		}
	}))

	return nil
}
