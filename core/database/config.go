package database

import (
	"fmt"
	"net/url"

	coreconfig "github.com/m3rciful/guidebot/core/config"
)

// Config holds database connection settings.
type Config = coreconfig.DatabaseConfig

// DSN renders cfg as a lib/pq keyword/value connection string.
func DSN(cfg Config) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

// URL renders cfg as a postgres:// URL.
func URL(cfg Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}
