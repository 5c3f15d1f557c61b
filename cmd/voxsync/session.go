package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/config"
	"github.com/muurk/voxsync/internal/discovery"
	"github.com/muurk/voxsync/internal/logging"
	"github.com/muurk/voxsync/internal/session"
)

// resolveBackend replaces the backend URL with the first mDNS answer when
// --discover is set
func resolveBackend(ctx context.Context) error {
	if !useDiscovery {
		return nil
	}

	fmt.Fprintln(os.Stderr, "Looking for a backend with mDNS...")
	b, err := discovery.NewScanner().FindFirst(ctx)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Found %s\n\n", b.String())
	settings.Backend.URL = b.BaseURL()
	return nil
}

// newClient returns a bare API client for read-only commands
func newClient(ctx context.Context) (*api.Client, error) {
	if err := resolveBackend(ctx); err != nil {
		return nil, err
	}
	client := api.NewClient(settings.Backend.URL)
	client.SetTimeout(settings.Backend.Timeout)
	return client, nil
}

// openSession starts a session and fails if the initial fetch fails
func openSession(ctx context.Context) (*session.Session, error) {
	if err := resolveBackend(ctx); err != nil {
		return nil, err
	}

	sess, err := session.New(settings)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(ctx); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

// rememberDevices writes the device selection to the settings file. The file
// is reloaded first so environment and flag overrides are not persisted.
func rememberDevices(input, output *int) error {
	if intPtrEqual(settings.Devices.Input, input) && intPtrEqual(settings.Devices.Output, output) {
		return nil
	}

	stored, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("failed to reload settings: %w", err)
	}
	stored.Devices = config.DeviceSettings{Input: input, Output: output}
	if err := stored.Save(settingsPath); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	settings.Devices = stored.Devices
	logging.Debug("Remembered device selection", zap.String("path", settingsPath))
	return nil
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// printJSON writes v indented to stdout
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
