// Package config loads and watches the orion service configuration.
//
// YAML and JSON are both accepted: YAML is coerced to JSON bytes so one
// strict decoder (DisallowUnknownFields) covers both formats. Durations are
// Go duration strings (e.g. "500ms", "10s", "1m").
package config

import "time"

type Config struct {
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	API         APIConfig         `json:"api,omitempty"`
	Telegram    TelegramConfig    `json:"telegram,omitempty"`
	Bridge      BridgeConfig      `json:"bridge,omitempty"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

// LoggingConfig controls the logger core.
//
// Level is the console threshold only; storage always keeps full history.
// Color is "auto" (tty detection), "on" or "off"; the NO_COLOR and
// FORCE_COLOR environment flags override it either way.
type LoggingConfig struct {
	Source  string `json:"source,omitempty"`  // default "orion"
	Version string `json:"version,omitempty"` // default "dev"
	Level   string `json:"level,omitempty"`   // default "INFO"
	Color   string `json:"color,omitempty"`   // default "auto"
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// APIConfig controls the HTTP query surface.
//
// Prefer binding to localhost; the endpoints expose the full log history.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8480"
}

// TelegramConfig controls the optional high-severity mirror sink.
type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"` // default "WARN"
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// BridgeConfig controls the foreign-logging bridge.
type BridgeConfig struct {
	DefaultProcess string            `json:"default_process,omitempty"` // default "bootstrap"
	FixedSource    string            `json:"fixed_source,omitempty"`
	Silence        map[string]string `json:"silence,omitempty"` // logger name -> min level
}

// MaintenanceConfig controls scheduled sqlite upkeep.
type MaintenanceConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"` // cron spec, default "@hourly"
}

// BusyTimeoutDuration parses the storage busy_timeout field.
func (c StorageConfig) BusyTimeoutDuration() (time.Duration, error) {
	return ParseDurationField("storage.busy_timeout", c.BusyTimeout)
}
