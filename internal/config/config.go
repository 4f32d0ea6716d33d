package config

import "time"

// Config holds runtime settings for the opsbook client.
//
// Fields:
//   - ServerURL: base URL of the remote runbook server.
//   - DatabasePath: location of the local sqlite store.
//   - User: display name used when materializing shared workspaces.
//   - DrainInterval: how often the sync manager drains the operation log.
type Config struct {
	ServerURL     string
	DatabasePath  string
	User          string
	DrainInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "https://api.opsbook.dev"
	c.DatabasePath = "opsbook.db"
	c.User = ""
	c.DrainInterval = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
