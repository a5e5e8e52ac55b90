package config

// DB holds the database configuration settings.
type DB struct {
	Engine   string // sqlite or mysql
	Path     string // database file path for the sqlite engine
	Extras   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}
