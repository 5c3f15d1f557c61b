// Package config loads and saves the voxsync settings file.
//
// Settings are layered. Defaults come first, then the YAML file, then a
// .env file in the working directory, then VOXSYNC_* environment variables.
// Command-line flags are applied last by the caller.
//
// # Settings File Location
//
// The file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/voxsync/config.yaml or $HOME/.config/voxsync/config.yaml
//   - macOS: $HOME/.config/voxsync/config.yaml
//   - Windows: %LOCALAPPDATA%\voxsync\config.yaml
//
// VOXSYNC_CONFIG replaces the path entirely.
//
// # Usage Example
//
//	path, _ := config.GetConfigPath()
//	settings, err := config.Resolve(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	settings.Devices.Input = &idx
//	if err := settings.Save(path); err != nil {
//	    log.Fatal(err)
//	}
//
// Save writes to a temporary file and renames it over the original.
package config
