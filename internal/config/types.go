// Package config loads and watches jobmill's service configuration.
//
// Files may be JSON or YAML; YAML is coerced to JSON so one strict decoder
// (DisallowUnknownFields) covers both.
package config

import "time"

type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Store    StoreConfig     `json:"store"`
	Engine   EngineConfig    `json:"engine"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	// Seed optionally points at a YAML seed file loaded into the store
	// before the registration pass.
	Seed string `json:"seed,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"` // omitted means on
	File    struct {
		Enabled bool   `json:"enabled,omitempty"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

// ConsoleEnabled distinguishes "omitted" (default on) from explicit false.
func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

type StoreConfig struct {
	Driver string `json:"driver,omitempty"` // "sqlite" or "memory"
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (e.g. "500ms"); sqlite only.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// EngineConfig controls dispatch behavior.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
type EngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	Timezone       string `json:"timezone,omitempty"` // IANA TZ, e.g. "Asia/Jakarta"
}

// TelegramConfig enables the admin bot boundary.
type TelegramConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Token   string `json:"token,omitempty"`
	// Admins is the allow-list of Telegram user IDs that may trigger jobs.
	Admins []int64 `json:"admins,omitempty"`
	// PollTimeout is a Go duration string; default "10s".
	PollTimeout string `json:"poll_timeout,omitempty"`
	// SendRatePerSec throttles outgoing messages; default 1.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	return parseDuration(path, raw)
}
