package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/voxsync/internal/config"
)

var forceInit bool

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsInitCmd)
	settingsCmd.AddCommand(settingsShowCmd)

	settingsInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing settings file")
}

// settingsCmd groups settings file commands
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage the voxsync settings file",
	Long: `Manage the settings file.

Values are resolved in this order, later ones winning:
  1. the settings file (` + "`voxsync settings show`" + ` prints its path)
  2. a .env file in the working directory
  3. VOXSYNC_* environment variables
  4. command line flags`,
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(settingsPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", settingsPath)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		s := config.Default()
		if backendURL != "" {
			s.Backend.URL = backendURL
		}
		if err := s.Save(settingsPath); err != nil {
			return fmt.Errorf("failed to write settings: %w", err)
		}
		fmt.Printf("Wrote %s\n", settingsPath)
		return nil
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat == "json" {
			return printJSON(settings)
		}

		data, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		fmt.Printf("# %s\n", settingsPath)
		fmt.Print(string(data))
		return nil
	},
}
