package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "voxsync") {
		t.Errorf("GetConfigDir() = %v, should contain 'voxsync'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") && os.Getenv("XDG_CONFIG_HOME") == "" {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}

	t.Setenv(PathEnvVar, "/tmp/custom.yaml")
	configPath, _ = GetConfigPath()
	if configPath != "/tmp/custom.yaml" {
		t.Errorf("GetConfigPath() with %s = %v", PathEnvVar, configPath)
	}
}

func TestDefault(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if s.Backend.URL != "http://localhost:8000" {
		t.Errorf("Backend.URL = %v", s.Backend.URL)
	}
	if s.Backend.Timeout != 5*time.Second {
		t.Errorf("Backend.Timeout = %v, want 5s", s.Backend.Timeout)
	}
	if s.Channel.ReconnectDelay != 3*time.Second || s.Channel.ReconnectPolicy != PolicyConstant {
		t.Errorf("Channel = %+v", s.Channel)
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws"},
		{"http://localhost:8000/", "ws://localhost:8000/ws"},
		{"https://voice.example.com", "wss://voice.example.com/ws"},
	}

	for _, tt := range tests {
		s := Default()
		s.Backend.URL = tt.base
		if got := s.WebSocketURL(); got != tt.want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(s *Settings) {}, false},
		{"exponential", func(s *Settings) { s.Channel.ReconnectPolicy = PolicyExponential }, false},
		{"bad version", func(s *Settings) { s.Version = 2 }, true},
		{"bad scheme", func(s *Settings) { s.Backend.URL = "localhost:8000" }, true},
		{"negative timeout", func(s *Settings) { s.Backend.Timeout = -time.Second }, true},
		{"unknown policy", func(s *Settings) { s.Channel.ReconnectPolicy = "linear" }, true},
		{"zero delay", func(s *Settings) { s.Channel.ReconnectDelay = 0 }, true},
		{"negative window", func(s *Settings) { s.Sync.CoalesceWindow = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Backend.URL != Default().Backend.URL {
		t.Errorf("Load() of missing file should return defaults, got %+v", s)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	s := Default()
	s.Backend.URL = "http://studio.local:9000"
	s.Sync.CoalesceWindow = 250 * time.Millisecond
	s.Logging.Level = "debug"
	in, out := 1, 3
	s.Devices.Input = &in
	s.Devices.Output = &out

	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after Save()")
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "coalesce_window: 250ms") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Backend.URL != s.Backend.URL {
		t.Errorf("Backend.URL = %v, want %v", loaded.Backend.URL, s.Backend.URL)
	}
	if loaded.Sync.CoalesceWindow != s.Sync.CoalesceWindow {
		t.Errorf("CoalesceWindow = %v, want %v", loaded.Sync.CoalesceWindow, s.Sync.CoalesceWindow)
	}
	if loaded.Devices.Input == nil || *loaded.Devices.Input != 1 || loaded.Devices.Output == nil || *loaded.Devices.Output != 3 {
		t.Errorf("Devices = %+v", loaded.Devices)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: 1\nbackend:\n  url: http://10.0.0.5:8000\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Backend.URL != "http://10.0.0.5:8000" {
		t.Errorf("Backend.URL = %v", s.Backend.URL)
	}
	if s.Backend.Timeout != 5*time.Second {
		t.Errorf("Backend.Timeout = %v, want default 5s", s.Backend.Timeout)
	}
	if s.Channel.ReconnectPolicy != PolicyConstant {
		t.Errorf("ReconnectPolicy = %v, want default", s.Channel.ReconnectPolicy)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "backend: [unterminated"},
		{"bad version", "version: 7\n"},
		{"bad duration", "version: 1\nbackend:\n  timeout: forever\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvBackendURL:      "http://override:8000",
		EnvTimeout:         "2s",
		EnvReconnectPolicy: PolicyExponential,
		EnvCoalesceWindow:  "0s",
		EnvLogLevel:        "info",
		EnvInputDevice:     "2",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	s := Default()
	if err := s.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if s.Backend.URL != "http://override:8000" || s.Backend.Timeout != 2*time.Second {
		t.Errorf("Backend = %+v", s.Backend)
	}
	if s.Channel.ReconnectPolicy != PolicyExponential {
		t.Errorf("ReconnectPolicy = %v", s.Channel.ReconnectPolicy)
	}
	if s.Sync.CoalesceWindow != 0 {
		t.Errorf("CoalesceWindow = %v, want 0", s.Sync.CoalesceWindow)
	}
	if s.Logging.Level != "info" {
		t.Errorf("Logging.Level = %v", s.Logging.Level)
	}
	if s.Devices.Input == nil || *s.Devices.Input != 2 || s.Devices.Output != nil {
		t.Errorf("Devices = %+v", s.Devices)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{EnvTimeout, "soon"},
		{EnvInputDevice, "mic"},
		{EnvReconnectPolicy, "random"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				if k == tt.key {
					return tt.value, true
				}
				return "", false
			}
			if err := Default().ApplyEnv(lookup); err == nil {
				t.Errorf("ApplyEnv(%s=%s) should fail", tt.key, tt.value)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VOXSYNC_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("VOXSYNC_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("VOXSYNC_TEST_DOTENV"); got != "from-file" {
		t.Errorf("VOXSYNC_TEST_DOTENV = %q, want from-file", got)
	}
}

func BenchmarkLoad(b *testing.B) {
	path := filepath.Join(b.TempDir(), "config.yaml")
	if err := Default().Save(path); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Load(path)
	}
}
