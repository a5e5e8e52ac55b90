package config

import (
	"time"

	"github.com/paneelbeheer/paneelbeheer/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Remote    Remote
	Render    Render
	Access    Access
	Uploads   Uploads
}

// Webserver implement webserver settings.
type Webserver struct {
	BrowseStatic        bool    // enable static file browsing (for development purposes only)
	CacheEnabled        bool    // true = enable cache, false = disable cache
	CleanPath           bool    // use clean path middleware to allow multi slash requests
	DisableRecover      bool    // disable recover middleware
	Domain              string  // domain name for the webserver
	Port                int     // listening port for the webserver
	ShutDownTime        int     // wait time for shutdown
	URL                 string  // base url for the webserver
	CookieEncryptionKey string  // encryption key for cookies
	Argon2Salt          string  // salt for argon2 hashing
	Session             Session // session settings
}

// Remote holds the settings for the central user administration service.
type Remote struct {
	URL    string // base url of the remote user service, empty disables remote sync
	APIKey string // bearer token for the remote user service
}

// Render holds the settings for the HTML to PDF render service.
type Render struct {
	URL string // base url of the render service, empty disables pakbon rendering
}

// Access holds access control tuning.
type Access struct {
	OwnerUsername string // account with exclusive access to the insights module
	OwnerModule   string // module reserved for the owner account
}

// Uploads holds file upload settings.
type Uploads struct {
	Dir        string // directory where uploaded files are stored
	MaxSizeMiB int    // maximum accepted upload size
}
