// Voxsync is the operator CLI and terminal dashboard for a voice modulator
// backend.
//
// It keeps one session with the backend: the REST configuration API for
// devices and profiles, and the /ws event channel for live status and
// configuration pushes. Running without arguments on a terminal opens the
// interactive dashboard.
//
// Usage:
//
//	voxsync [command] [flags]
//
// See 'voxsync --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/voxsync/internal/config"
	"github.com/muurk/voxsync/internal/logging"
	"github.com/muurk/voxsync/internal/tui"
	"github.com/muurk/voxsync/internal/ui"
	"github.com/muurk/voxsync/internal/version"
)

// Global flags
var (
	configPath   string
	backendURL   string
	logLevel     string
	logFile      string
	useDiscovery bool
	outputFormat string
)

// Resolved by loadSettings before any command runs
var (
	settings     *config.Settings
	settingsPath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "voxsync",
	Short: "Voice modulator session client",
	Long: `A client for the voice modulator backend.

Keeps the audio configuration, the active voice profile and the live status
in sync with the backend over its REST API and /ws event channel.

If no command is specified and stdout is a terminal, the interactive
dashboard launches. Otherwise the backend status is printed.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.IsTerminal(os.Stdout) {
			return runStatus(cmd, args)
		}
		return runDashboard(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: OS config dir, or "+config.PathEnvVar+")")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend URL, e.g. http://localhost:8000")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a rotating file instead of stdout")
	rootCmd.PersistentFlags().BoolVar(&useDiscovery, "discover", false, "Find the backend with mDNS instead of using --backend")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// loadSettings resolves the settings file, .env, environment and flags,
// in increasing priority, and starts logging
func loadSettings(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	s, err := config.Resolve(path)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if backendURL != "" {
		s.Backend.URL = backendURL
	}
	if logLevel != "" {
		s.Logging.Level = logLevel
	}
	if logFile != "" {
		s.Logging.File = logFile
	}
	if err := s.Validate(); err != nil {
		return err
	}

	settings, settingsPath = s, path

	return logging.InitializeWithOptions(logging.Options{
		Level: s.Logging.Level,
		File:  s.Logging.File,
	})
}

// dashboardLogFile returns where the dashboard logs when no file is set.
// Stdout belongs to the screen while the dashboard runs.
func dashboardLogFile() string {
	if settings.Logging.File != "" {
		return settings.Logging.File
	}
	return filepath.Join(filepath.Dir(settingsPath), "voxsync.log")
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Launch the interactive dashboard",
	Long: `Launch the interactive terminal dashboard.

The dashboard shows the connection state, engine latency and CPU load, the
audio configuration and the active profile. Edits are pushed to the backend
as you make them; profile slider changes are coalesced.

The devices you pick are remembered in the settings file.`,
	Example: `  # Launch against the default backend
  voxsync dashboard
  # Or simply (dashboard is default on a terminal):
  voxsync

  # Find the backend with mDNS first
  voxsync --discover`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeWithOptions(logging.Options{
		Level: settings.Logging.Level,
		File:  dashboardLogFile(),
	}); err != nil {
		return err
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		p := ui.NewPrinter(os.Stderr)
		p.PrintError("Cannot reach backend at "+settings.Backend.URL, err)
		return fmt.Errorf("dashboard: %w", err)
	}
	defer func() { _ = sess.Close() }()

	if err := sess.RestoreDevices(ctx); err != nil {
		logging.Warn("Could not restore remembered devices: " + err.Error())
	}

	final, err := tui.Run(ctx, sess)
	if err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}

	return rememberDevices(final.Config.InputDevice, final.Config.OutputDevice)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voxsync %s\n", version.Full())
	},
}
