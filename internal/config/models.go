package config

import (
	"fmt"
	"strings"
	"time"
)

// CurrentVersion is the settings file format version
const CurrentVersion = 1

// Reconnect policy names
const (
	PolicyConstant    = "constant"
	PolicyExponential = "exponential"
)

// Settings is the user settings file.
// Durations are written as Go duration strings ("5s", "250ms").
type Settings struct {
	Version int             `yaml:"version"`
	Backend BackendSettings `yaml:"backend"`
	Channel ChannelSettings `yaml:"channel"`
	Sync    SyncSettings    `yaml:"sync"`
	Logging LoggingSettings `yaml:"logging"`
	Devices DeviceSettings  `yaml:"devices,omitempty"`
}

// BackendSettings locates the backend and bounds requests to it
type BackendSettings struct {
	URL     string        `yaml:"url"`     // REST root, e.g. http://localhost:8000
	Timeout time.Duration `yaml:"timeout"` // per-request timeout
}

// ChannelSettings controls the event channel reconnect loop
type ChannelSettings struct {
	ReconnectPolicy   string        `yaml:"reconnect_policy"`              // constant or exponential
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`               // constant delay, or first exponential delay
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay,omitempty"` // exponential ceiling
}

// SyncSettings controls how local edits are pushed
type SyncSettings struct {
	CoalesceWindow time.Duration `yaml:"coalesce_window"` // 0 pushes every profile edit
}

// LoggingSettings mirrors logging.Options
type LoggingSettings struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// DeviceSettings remembers the devices picked last time
type DeviceSettings struct {
	Input  *int `yaml:"input,omitempty"`
	Output *int `yaml:"output,omitempty"`
}

// Default returns the settings used when no file exists
func Default() *Settings {
	return &Settings{
		Version: CurrentVersion,
		Backend: BackendSettings{
			URL:     "http://localhost:8000",
			Timeout: 5 * time.Second,
		},
		Channel: ChannelSettings{
			ReconnectPolicy:   PolicyConstant,
			ReconnectDelay:    3 * time.Second,
			MaxReconnectDelay: 30 * time.Second,
		},
		Sync: SyncSettings{
			CoalesceWindow: 100 * time.Millisecond,
		},
	}
}

// WebSocketURL derives the event channel URL from the backend URL
func (s *Settings) WebSocketURL() string {
	u := strings.TrimRight(s.Backend.URL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Validate reports the first setting that cannot be used
func (s *Settings) Validate() error {
	if s.Version != CurrentVersion {
		return fmt.Errorf("unsupported settings version: %d (expected %d)", s.Version, CurrentVersion)
	}
	u := s.Backend.URL
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("backend url must start with http:// or https://, got %q", u)
	}
	if s.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout cannot be negative")
	}
	switch s.Channel.ReconnectPolicy {
	case PolicyConstant, PolicyExponential:
	default:
		return fmt.Errorf("reconnect policy must be %q or %q, got %q", PolicyConstant, PolicyExponential, s.Channel.ReconnectPolicy)
	}
	if s.Channel.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if s.Sync.CoalesceWindow < 0 {
		return fmt.Errorf("coalesce window cannot be negative")
	}
	return nil
}

// fillDefaults replaces strings a file left blank
func (s *Settings) fillDefaults() {
	d := Default()
	if s.Backend.URL == "" {
		s.Backend.URL = d.Backend.URL
	}
	if s.Channel.ReconnectPolicy == "" {
		s.Channel.ReconnectPolicy = d.Channel.ReconnectPolicy
	}
}
