package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/channel"
	"github.com/muurk/voxsync/internal/discovery"
	"github.com/muurk/voxsync/internal/state"
	"github.com/muurk/voxsync/internal/ui"
)

// Command flags
var (
	scanTimeout   int
	watchDuration time.Duration
	setInput      int
	setOutput     int
	setBuffer     int
	setRate       int
)

func init() {
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// devicesCmd lists audio devices
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the audio devices the backend can open",
	Example: `  voxsync devices
  voxsync devices --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		devices, err := client.ListDevices(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		switch outputFormat {
		case "json":
			return printJSON(devices)
		case "compact":
			for _, d := range devices {
				fmt.Printf("%d\t%s\n", d.Index, d.Name)
			}
		default:
			fmt.Print(api.FormatDeviceTable(devices))
		}
		return nil
	},
}

// statusCmd polls the backend status once
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the backend status",
	Long: `Poll GET /status once and print latency, CPU load, devices and whether
processing is running.`,
	Example: `  voxsync status
  voxsync status --format json
  voxsync status --discover`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd.Context())
	if err != nil {
		return err
	}

	status, err := client.GetStatus(cmd.Context())
	if err != nil {
		p := ui.NewPrinter(os.Stderr)
		p.PrintError("Cannot reach backend at "+settings.Backend.URL, err)
		return fmt.Errorf("failed to get status: %w", err)
	}

	switch outputFormat {
	case "json":
		return printJSON(status)
	case "compact":
		fmt.Printf("enabled=%v latency_ms=%.1f cpu=%.1f\n", status.Enabled, status.LatencyMs, status.CPUUsage)
	default:
		fmt.Print(status.FormatDetailed())
	}
	return nil
}

// watchCmd streams events from the channel
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream status and configuration changes",
	Long: `Connect the /ws event channel and print every state change until
interrupted. The channel reconnects on its own when the backend drops it.`,
	Example: `  voxsync watch
  voxsync watch --duration 30s --format compact`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if watchDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchDuration)
		defer cancel()
	}

	sess, err := openSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	printer := ui.NewPrinter(os.Stdout)
	printer.PrintHeader("Watching Backend", "voxsync watch",
		ui.Param{Key: "Backend", Value: settings.Backend.URL},
		ui.Param{Key: "Channel", Value: sess.Channel().URL()},
	)

	events := make(chan string, 64)
	emit := func(line string) {
		select {
		case events <- line:
		default:
		}
	}

	unsubState := sess.Channel().OnState(func(s channel.State) {
		emit(fmt.Sprintf("channel %s", s))
	})
	defer unsubState()

	var (
		mu   sync.Mutex
		last = sess.State().Snapshot()
	)
	unsubSnap := sess.State().Subscribe(func(s state.Snapshot) {
		mu.Lock()
		line := describeChange(last, s)
		last = s
		mu.Unlock()
		emit(line)
	})
	defer unsubSnap()

	unsubNotice := sess.State().OnNotice(func(err error) {
		emit("notice " + api.ShortMessage(err))
	})
	defer unsubNotice()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-events:
			if line == "" {
				continue
			}
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), line)
		}
	}
}

// describeChange summarizes what differs between two snapshots
func describeChange(prev, next state.Snapshot) string {
	switch {
	case !prev.Config.Equal(next.Config):
		return "config " + next.Config.Summary()
	case prev.Profile != next.Profile:
		if outputFormat == "compact" {
			return "profile " + next.Profile.Name
		}
		return "profile " + next.Profile.FormatCompact()
	case next.HasStatus:
		s := next.Status
		return fmt.Sprintf("status enabled=%v latency=%.1fms cpu=%.1f%%", s.Enabled, s.LatencyMs, s.CPUUsage)
	}
	return ""
}

// discoverCmd lists backends advertised with mDNS
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find backends on the local network",
	Long: `Browse for ` + discovery.ServiceType + ` services with mDNS and list every
backend that answers. 'voxsync-mockd serve --advertise' registers one.`,
	Example: `  voxsync discover
  voxsync discover --timeout 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := discovery.NewScanner()
		scanner.Timeout = time.Duration(scanTimeout) * time.Second

		fmt.Printf("Scanning for backends (timeout: %ds)...\n\n", scanTimeout)
		backends, err := scanner.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if outputFormat == "json" {
			return printJSON(backends)
		}

		if len(backends) == 0 {
			fmt.Println("No backends found.")
			fmt.Println("\nTroubleshooting:")
			fmt.Println("  - Ensure the backend advertises " + discovery.ServiceType)
			fmt.Println("  - Multicast may be blocked on this network; use --backend instead")
			fmt.Println("  - Try increasing --timeout")
			return nil
		}

		fmt.Printf("Found %d backend(s):\n\n", len(backends))
		for i, b := range backends {
			fmt.Printf("%d. %s\n", i+1, b.Instance)
			fmt.Printf("   URL:     %s\n", b.BaseURL())
			fmt.Printf("   Host:    %s\n", b.Hostname)
			if v := b.GetMetadata("version"); v != "" {
				fmt.Printf("   Version: %s\n", v)
			}
			fmt.Println()
		}
		fmt.Println("Use 'voxsync --backend <url>' or 'voxsync --discover' to connect")
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", int(discovery.DefaultScanTimeout/time.Second), "Scan timeout in seconds")
}

// enableCmd and disableCmd switch processing
var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start audio processing with the remembered devices",
	Example: `  voxsync config set --input 0 --output 1
  voxsync enable`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabled(cmd, true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop audio processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabled(cmd, false)
	},
}

func runSetEnabled(cmd *cobra.Command, enabled bool) error {
	edit := api.ConfigEdit{
		InputDevice:  settings.Devices.Input,
		OutputDevice: settings.Devices.Output,
		Enabled:      &enabled,
	}
	title := "Processing Disabled"
	if enabled {
		title = "Processing Enabled"
	}
	return applyConfigEdit(cmd, edit, title)
}

// configCmd groups audio configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the audio configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the devices the backend is using and the remembered selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		status, err := client.GetStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		devices, err := client.ListDevices(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		remembered := api.DefaultConfig()
		remembered.InputDevice = settings.Devices.Input
		remembered.OutputDevice = settings.Devices.Output
		remembered.Enabled = status.Enabled

		if outputFormat == "json" {
			return printJSON(map[string]interface{}{"status": status, "remembered": remembered})
		}

		fmt.Print(status.FormatDetailed())
		fmt.Println()
		fmt.Println("Remembered selection:")
		fmt.Printf("  Input:  %s\n", nameOr(settings.Devices.Input, devices))
		fmt.Printf("  Output: %s\n", nameOr(settings.Devices.Output, devices))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change devices, buffer size or sample rate",
	Long: `Send a new audio configuration to the backend.

Devices not given on the command line come from the settings file. The
configuration is pushed only when both devices are known; otherwise it is
remembered until they are. Selected devices are saved to the settings file.

The backend replaces its whole configuration, so an omitted --buffer or
--rate falls back to the default (512 samples, 48000 Hz).`,
	Example: `  # Pick devices by index (see 'voxsync devices')
  voxsync config set --input 0 --output 1

  # Lower latency
  voxsync config set --buffer 256`,
	RunE: func(cmd *cobra.Command, args []string) error {
		edit := api.ConfigEdit{
			InputDevice:  settings.Devices.Input,
			OutputDevice: settings.Devices.Output,
		}
		if cmd.Flags().Changed("input") {
			edit.InputDevice = api.IntPtr(setInput)
		}
		if cmd.Flags().Changed("output") {
			edit.OutputDevice = api.IntPtr(setOutput)
		}
		if cmd.Flags().Changed("buffer") {
			edit.BufferSize = api.IntPtr(setBuffer)
		}
		if cmd.Flags().Changed("rate") {
			edit.SampleRate = api.IntPtr(setRate)
		}
		return applyConfigEdit(cmd, edit, "Configuration Updated")
	},
}

func init() {
	configSetCmd.Flags().IntVar(&setInput, "input", 0, "Input device index")
	configSetCmd.Flags().IntVar(&setOutput, "output", 0, "Output device index")
	configSetCmd.Flags().IntVar(&setBuffer, "buffer", api.DefaultBufferSize, "Buffer size in samples (128, 256, 512, 1024, 2048)")
	configSetCmd.Flags().IntVar(&setRate, "rate", api.DefaultSampleRate, "Sample rate in Hz (44100, 48000)")
}

// applyConfigEdit runs edit through a session and reports the outcome
func applyConfigEdit(cmd *cobra.Command, edit api.ConfigEdit, title string) error {
	printer := ui.NewPrinter(os.Stdout)

	if err := api.ValidateConfigEdit(edit); err != nil {
		printer.PrintError("Invalid configuration", err)
		return err
	}

	sess, err := openSession(cmd.Context())
	if err != nil {
		printer.PrintError("Cannot reach backend at "+settings.Backend.URL, err)
		return err
	}
	defer func() { _ = sess.Close() }()

	cfg, err := sess.State().ApplyLocalConfigEdit(cmd.Context(), edit)
	if err != nil {
		if errors.Is(err, api.ErrDevicesRequired) {
			printer.PrintError("No devices selected", err,
				"Run 'voxsync devices' to list indexes",
				"Then 'voxsync config set --input <n> --output <n>'")
		} else {
			printer.PrintError("Configuration rejected", err)
		}
		return err
	}

	if err := rememberDevices(cfg.InputDevice, cfg.OutputDevice); err != nil {
		printer.PrintWarning("Devices not remembered", ui.Param{Key: "Error", Value: err.Error()})
	}

	devices := sess.Devices()
	details := []ui.Param{
		{Key: "Input", Value: nameOr(cfg.InputDevice, devices)},
		{Key: "Output", Value: nameOr(cfg.OutputDevice, devices)},
		{Key: "Buffer", Value: fmt.Sprintf("%d samples", cfg.BufferSize)},
		{Key: "Sample rate", Value: fmt.Sprintf("%d Hz", cfg.SampleRate)},
	}
	if !cfg.DevicesSelected() {
		printer.PrintWarning("Configuration staged until both devices are set", details...)
		return nil
	}
	printer.PrintSuccess(title, details...)
	return nil
}

func nameOr(index *int, devices []api.AudioDevice) string {
	if index == nil {
		return "(none)"
	}
	if name, ok := api.DeviceName(index, devices); ok {
		return fmt.Sprintf("%s [%d]", name, *index)
	}
	return fmt.Sprintf("#%d", *index)
}
