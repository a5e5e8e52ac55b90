// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/BurntSushi/toml"
)

// EnvConfigJSON names the environment variable holding a JSON config override.
const EnvConfigJSON = "PANEELBEHEER_CONFIG_JSON"

const (
	// EngineSQLite is the default local database engine.
	EngineSQLite = "sqlite"

	// EngineMySQL selects a shared mysql database.
	EngineMySQL = "mysql"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c   Config
		err error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	if jsonEnv := os.Getenv(EnvConfigJSON); jsonEnv != "" {
		c, err = decodeAndMergeConfig(c, jsonEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config override from env")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate the minimal settings the daemon needs to start and
// fill in defaults for the optional ones.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	switch c.DB.Engine {
	case "":
		c.DB.Engine = EngineSQLite
	case EngineSQLite, EngineMySQL:
	default:
		return errors.Wrap(ErrUnsupportedDBEngine, invalidErrMessage)
	}

	if c.DB.Engine == EngineSQLite && c.DB.Path == "" {
		c.DB.Path = "./data/paneelbeheer.db"
	}

	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "./data/uploads"
	}

	if c.Uploads.MaxSizeMiB == 0 {
		c.Uploads.MaxSizeMiB = 25
	}

	// an empty OwnerUsername disables the named-owner exception; only the
	// module gets a default, and only when an owner is actually named
	if c.Access.OwnerUsername != "" && c.Access.OwnerModule == "" {
		c.Access.OwnerModule = "insights"
	}

	return nil
}
