// Package config holds runtime settings for the VibeVault core and the
// defaults → JSON file → flags layering used to load them.
package config

import "time"

// Config holds runtime settings for the VibeVault core.
//
// Fields:
//   - DatabaseDSN: path (or DSN) of the local SQLite database.
//   - DeviceID/DeviceName: this device's identity as seen by peers.
//   - IdleTimeout: session auto-lock after this much inactivity.
//   - ScanTimeout/PairingTimeout/AckTimeout/SessionTimeout: sync-flow
//     deadlines from the concurrency model.
//   - AckWindow: chunks between receiver acknowledgements.
type Config struct {
	DatabaseDSN    string
	DeviceID       string
	DeviceName     string
	IdleTimeout    time.Duration
	ScanTimeout    time.Duration
	PairingTimeout time.Duration
	AckTimeout     time.Duration
	SessionTimeout time.Duration
	AckWindow      int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "vibevault.db"
	c.DeviceID = ""
	c.DeviceName = "VibeVault"
	c.IdleTimeout = 10 * time.Minute
	c.ScanTimeout = 30 * time.Second
	c.PairingTimeout = 60 * time.Second
	c.AckTimeout = 5 * time.Second
	c.SessionTimeout = 2 * time.Minute
	c.AckWindow = 16
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
