// Package daemon assembles the application: database, migrations, seed
// data, session store, remote collaborators, the outbox reconciler and
// the web service.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/storage"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionsqlite "github.com/gofiber/storage/sqlite3/v2"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/paneelbeheer/paneelbeheer/internal/authz"
	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/db/dsn"
	"github.com/paneelbeheer/paneelbeheer/internal/db/models"
	"github.com/paneelbeheer/paneelbeheer/internal/events"
	"github.com/paneelbeheer/paneelbeheer/internal/logger"
	"github.com/paneelbeheer/paneelbeheer/internal/remote"
	"github.com/paneelbeheer/paneelbeheer/internal/report"
	"github.com/paneelbeheer/paneelbeheer/internal/store/users"
	"github.com/paneelbeheer/paneelbeheer/internal/web"
	"github.com/paneelbeheer/paneelbeheer/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	webService *web.Service
	reconciler *users.Reconciler
	cfg        *config.Config
}

// Start starts the outbox reconciler and the web service. It blocks until
// the web service stops.
func (d *Daemon) Start() error {
	if d.reconciler != nil {
		if err := d.reconciler.Start(); err != nil {
			return err
		}

		defer d.reconciler.Stop()
	}

	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	db := openDatabase(cfg)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Project{},
		&models.Verdeler{},
		&models.Melding{},
		&models.TimeEntry{},
		&models.Upload{},
		&models.AccessCode{},
		&models.OutboxEntry{},
		&models.PermissionOverride{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	seed(cfg, db)
	validateStoredRoles(db)

	var remoteClient *remote.Client
	var remoteStore users.RemoteStore

	if cfg.Remote.URL != "" {
		remoteClient = remote.NewClient(cfg.Remote.URL, cfg.Remote.APIKey)
		remoteStore = remoteClient
	} else {
		log.Warn().Msg("no remote store configured, running local-only")
	}

	userStore, err := users.New(db, remoteStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user store")
	}

	// sessions reference users by id; the record is re-read per request
	session.Init(newSessionStorage(cfg), userStore.Get)

	var reconciler *users.Reconciler
	if remoteStore != nil {
		reconciler = users.NewReconciler(userStore)
	}

	guard := authz.NewGuard(authz.GuardConfig{
		OwnerUsername: cfg.Access.OwnerUsername,
		OwnerModule:   authz.Module(cfg.Access.OwnerModule),
	})

	webService := web.New(cfg, web.Deps{
		DB:       db,
		Users:    userStore,
		Guard:    guard,
		Remote:   remoteClient,
		Renderer: report.NewClient(cfg.Render.URL),
		Bus:      events.NewBus(),
	})

	return &Daemon{
		webService: webService,
		reconciler: reconciler,
		cfg:        cfg,
	}
}

func openDatabase(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.DB.Engine {
	case config.EngineMySQL:
		dialector = gormmysql.Open(dsn.Create(cfg))
	default:
		if dir := filepath.Dir(cfg.DB.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Fatal().Err(err).Str("dir", dir).Msg("failed to create database dir")
			}
		}

		dialector = sqlite.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	return db
}

// newSessionStorage picks the session backend matching the database
// engine, so sessions live next to the application data.
func newSessionStorage(cfg *config.Config) storage.Storage {
	switch cfg.DB.Engine {
	case config.EngineMySQL:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	default:
		return sessionsqlite.New(sessionsqlite.Config{
			Database: cfg.DB.Path + ".sessions",
			Table:    "sessions",
		})
	}
}
