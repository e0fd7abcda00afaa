package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/vibevault/vibevault/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// are given in seconds; zero values leave the corresponding Config field
// untouched.
type JsonConfig struct {
	DatabaseDSN        string `json:"database_dsn"`
	DeviceID           string `json:"device_id"`
	DeviceName         string `json:"device_name"`
	IdleTimeoutSecs    int    `json:"idle_timeout_secs"`
	ScanTimeoutSecs    int    `json:"scan_timeout_secs"`
	PairingTimeoutSecs int    `json:"pairing_timeout_secs"`
	AckTimeoutSecs     int    `json:"ack_timeout_secs"`
	SessionTimeoutSecs int    `json:"session_timeout_secs"`
	AckWindow          int    `json:"ack_window"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.DeviceID != "" {
		cfg.DeviceID = jc.DeviceID
	}
	if jc.DeviceName != "" {
		cfg.DeviceName = jc.DeviceName
	}
	if jc.IdleTimeoutSecs > 0 {
		cfg.IdleTimeout = time.Duration(jc.IdleTimeoutSecs) * time.Second
	}
	if jc.ScanTimeoutSecs > 0 {
		cfg.ScanTimeout = time.Duration(jc.ScanTimeoutSecs) * time.Second
	}
	if jc.PairingTimeoutSecs > 0 {
		cfg.PairingTimeout = time.Duration(jc.PairingTimeoutSecs) * time.Second
	}
	if jc.AckTimeoutSecs > 0 {
		cfg.AckTimeout = time.Duration(jc.AckTimeoutSecs) * time.Second
	}
	if jc.SessionTimeoutSecs > 0 {
		cfg.SessionTimeout = time.Duration(jc.SessionTimeoutSecs) * time.Second
	}
	if jc.AckWindow > 0 {
		cfg.AckWindow = jc.AckWindow
	}
}
