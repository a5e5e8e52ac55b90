// Package web wires the fiber application: template engine, static
// assets, auth middleware and every screen handler.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/events"
	"github.com/paneelbeheer/paneelbeheer/internal/remote"
	"github.com/paneelbeheer/paneelbeheer/internal/report"
	"github.com/paneelbeheer/paneelbeheer/internal/store/users"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/accesscodes"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/account"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/dashboard"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/gebruikers"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/insights"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/login"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/logout"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/meldingen"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/pakbon"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/projects"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/uploads"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/uren"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/verdelers"
	"github.com/paneelbeheer/paneelbeheer/internal/web/handler/viewas"
	"github.com/paneelbeheer/paneelbeheer/internal/web/middleware/auth"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
}

// Deps bundles the collaborators the handlers need.
type Deps struct {
	DB       *gorm.DB
	Users    *users.Store
	Guard    *authz.Guard
	Remote   *remote.Client
	Renderer *report.Client
	Bus      *events.Bus
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, deps Deps) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if deps.DB == nil || deps.Users == nil || deps.Guard == nil {
		panic("db, user store and guard cannot be nil")
	}

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in dev mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("dev mode enabled: using local filesystem for templates")
	}

	// Add template helper functions
	templateEngine.AddFunc("iterate", func(count int) []int {
		result := make([]int, count)
		for i := range result {
			result[i] = i
		}

		return result
	})
	templateEngine.AddFunc("add", func(a, b int) int {
		return a + b
	})
	templateEngine.AddFunc("sub", func(a, b int) int {
		return a - b
	})

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "Paneelbeheer",
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			Views:          templateEngine,
		},
	)

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
				Browse:     cfg.Webserver.BrowseStatic,
			},
		),
	)

	app.Use(auth.Middleware)

	service := &Service{
		cfg: cfg,
		App: app,
		db:  deps.DB,
	}

	// init handlers (they register their own routes with capability checks)
	if err := login.Handler.Init(app, cfg, deps.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to init login handler")
	}

	logout.Handler.Init(app, cfg)
	dashboard.Handler.Init(app, cfg, deps.DB, deps.Guard)
	gebruikers.Handler.Init(app, cfg, deps.Users, deps.Guard)
	projects.Handler.Init(app, cfg, deps.DB, deps.Guard)
	verdelers.Handler.Init(app, cfg, deps.DB, deps.Guard)
	meldingen.Handler.Init(app, cfg, deps.DB, deps.Guard)
	uren.Handler.Init(app, cfg, deps.DB, deps.Guard)
	uploads.Handler.Init(app, cfg, deps.DB, deps.Guard)
	accesscodes.Handler.Init(app, cfg, deps.DB, deps.Guard, deps.Remote)
	pakbon.Handler.Init(app, cfg, deps.DB, deps.Guard, deps.Renderer)
	viewas.Handler.Init(app, cfg, deps.Bus)
	account.Handler.Init(app, cfg, deps.Users, deps.Guard)
	insights.Handler.Init(app, cfg, deps.DB, deps.Guard)

	// redirect root to dashboard
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/dashboard")
	})

	// aliveness probe; fails during the shutdown grace window so load
	// balancers drain this instance
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("ok")
	})

	service.alive.Store(true)

	return service
}
