package database

import (
	"fmt"
	"net/url"

	"github.com/carlosmourajunior/minhasfinancas/internal/config"
)

// defaultMigrationsPath is relative to the working directory of the binaries.
const defaultMigrationsPath = "migrations"

// Config holds the PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// MigrationsPath is the directory holding the SQL migrations.
	MigrationsPath string
}

// ConfigFrom derives the database settings from the application config.
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		Host:           cfg.DBHost,
		Port:           cfg.DBPort,
		User:           cfg.DBUser,
		Password:       cfg.DBPassword,
		DBName:         cfg.DBName,
		SSLMode:        cfg.DBSSLMode,
		MigrationsPath: defaultMigrationsPath,
	}
}

// DSN returns the key/value connection string used by GORM.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the postgres:// URL used by golang-migrate.
func (c *Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c *Config) sourceURL() string {
	path := c.MigrationsPath
	if path == "" {
		path = defaultMigrationsPath
	}
	return "file://" + path
}
