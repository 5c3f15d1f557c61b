package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment overrides, applied on top of the settings file
const (
	EnvBackendURL        = "VOXSYNC_BACKEND_URL"
	EnvTimeout           = "VOXSYNC_TIMEOUT"
	EnvReconnectPolicy   = "VOXSYNC_RECONNECT_POLICY"
	EnvReconnectDelay    = "VOXSYNC_RECONNECT_DELAY"
	EnvMaxReconnectDelay = "VOXSYNC_MAX_RECONNECT_DELAY"
	EnvCoalesceWindow    = "VOXSYNC_COALESCE_WINDOW"
	EnvLogLevel          = "VOXSYNC_LOG_LEVEL"
	EnvLogFile           = "VOXSYNC_LOG_FILE"
	EnvInputDevice       = "VOXSYNC_INPUT_DEVICE"
	EnvOutputDevice      = "VOXSYNC_OUTPUT_DEVICE"
)

// LoadDotEnv loads KEY=value pairs from files into the process environment.
// Variables already set win over the files. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from VOXSYNC_* variables found by lookup.
// Pass os.LookupEnv in production.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}
	device := func(key string, dst **int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = &n
		return nil
	}

	str(EnvBackendURL, &s.Backend.URL)
	str(EnvReconnectPolicy, &s.Channel.ReconnectPolicy)
	str(EnvLogLevel, &s.Logging.Level)
	str(EnvLogFile, &s.Logging.File)

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{EnvTimeout, &s.Backend.Timeout},
		{EnvReconnectDelay, &s.Channel.ReconnectDelay},
		{EnvMaxReconnectDelay, &s.Channel.MaxReconnectDelay},
		{EnvCoalesceWindow, &s.Sync.CoalesceWindow},
	} {
		if err := dur(d.key, d.dst); err != nil {
			return err
		}
	}

	if err := device(EnvInputDevice, &s.Devices.Input); err != nil {
		return err
	}
	if err := device(EnvOutputDevice, &s.Devices.Output); err != nil {
		return err
	}

	return s.Validate()
}

// Resolve loads the settings file, then .env, then the process environment
func Resolve(path string) (*Settings, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return s, nil
}
