package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/profiles"
	"github.com/muurk/voxsync/internal/ui"
)

// Profile command flags
var (
	saveFrom   string
	saveParams []string
	assumeYes  bool
)

func init() {
	rootCmd.AddCommand(profilesCmd)

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesSaveCmd)
	profilesCmd.AddCommand(profilesLoadCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)

	profilesSaveCmd.Flags().StringVar(&saveFrom, "from", "", "Start from a stored profile instead of the neutral one")
	profilesSaveCmd.Flags().StringArrayVar(&saveParams, "set", nil, "Set a parameter, e.g. --set pitch_shift=-4 (repeatable)")
	profilesDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

// profilesCmd groups stored profile commands
var profilesCmd = &cobra.Command{
	Use:     "profiles",
	Aliases: []string{"profile"},
	Short:   "Manage stored voice profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		names, err := client.ListProfiles(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}

		if outputFormat == "json" {
			return printJSON(names)
		}
		for _, name := range profiles.Sorted(names) {
			if outputFormat != "compact" && profiles.LikelyProtected(name) {
				fmt.Printf("%s  (default)\n", name)
				continue
			}
			fmt.Println(name)
		}
		return nil
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the parameters of a stored profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		p, err := client.GetProfile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get profile: %w", err)
		}

		switch outputFormat {
		case "json":
			return printJSON(p)
		case "compact":
			fmt.Println(p.FormatCompact())
		default:
			fmt.Print(p.FormatDetailed())
		}
		return nil
	},
}

var profilesSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Store a profile under a name",
	Long: `Store a profile on the backend, replacing any profile of the same name.

The profile starts from the neutral defaults, or from --from, and each --set
overrides one parameter. Values are clamped to their ranges. Parameters:

` + paramHelp(),
	Example: `  voxsync profiles save Podcast --set pitch_shift=-2 --set brightness=1.5
  voxsync profiles save "Deep Podcast" --from "Deep Voice" --set breath_noise=10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printer := ui.NewPrinter(os.Stdout)

		sess, err := openSession(cmd.Context())
		if err != nil {
			printer.PrintError("Cannot reach backend at "+settings.Backend.URL, err)
			return err
		}
		defer func() { _ = sess.Close() }()

		base := api.DefaultProfile()
		if saveFrom != "" {
			base, err = sess.Client().GetProfile(cmd.Context(), saveFrom)
			if err != nil {
				printer.PrintError("Cannot read "+saveFrom, err)
				return err
			}
		}

		p, err := applyParamFlags(base, saveParams)
		if err != nil {
			printer.PrintError("Invalid parameter", err)
			return err
		}

		if err := sess.Profiles().Save(cmd.Context(), args[0], p); err != nil {
			printer.PrintError("Save failed", err)
			return err
		}

		p.Name = strings.TrimSpace(args[0])
		printer.PrintSuccess("Profile Saved", profileDetails(p)...)
		return nil
	},
}

var profilesLoadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Make a stored profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printer := ui.NewPrinter(os.Stdout)

		sess, err := openSession(cmd.Context())
		if err != nil {
			printer.PrintError("Cannot reach backend at "+settings.Backend.URL, err)
			return err
		}
		defer func() { _ = sess.Close() }()

		p, err := sess.Profiles().Load(cmd.Context(), args[0])
		if err != nil {
			printer.PrintError("Load failed", err)
			return err
		}
		printer.PrintSuccess("Profile Loaded", profileDetails(p)...)
		return nil
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored profile",
	Long: `Delete a stored profile. The backend refuses to delete its shipped
defaults; that refusal is reported and nothing changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		printer := ui.NewPrinter(os.Stdout)
		printer.PrintHeader("Delete Profile", "voxsync profiles delete", ui.Param{Key: "Profile", Value: name})

		if !assumeYes {
			var warnings []string
			if profiles.LikelyProtected(name) {
				warnings = append(warnings, "This looks like a shipped default; the backend will probably refuse")
			}
			if !ui.Confirm(os.Stdin, os.Stdout, "Delete profile "+strconv.Quote(name)+"?", warnings) {
				return nil
			}
		}

		sess, err := openSession(cmd.Context())
		if err != nil {
			printer.PrintError("Cannot reach backend at "+settings.Backend.URL, err)
			return err
		}
		defer func() { _ = sess.Close() }()

		if err := sess.Profiles().Delete(cmd.Context(), name); err != nil {
			if api.IsProtectedError(err) {
				printer.PrintWarning("Profile is protected", ui.Param{Key: "Profile", Value: name})
			} else {
				printer.PrintError("Delete failed", err)
			}
			return err
		}
		printer.PrintSuccess("Profile Deleted", ui.Param{Key: "Profile", Value: name})
		return nil
	},
}

// applyParamFlags applies key=value overrides to p
func applyParamFlags(p api.Profile, pairs []string) (api.Profile, error) {
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return p, api.NewValidationError(fmt.Sprintf("expected key=value, got %q", pair))
		}
		r, ok := api.LookupParam(strings.TrimSpace(key))
		if !ok {
			return p, api.NewValidationError(fmt.Sprintf("unknown parameter %q", key))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return p, api.NewValidationError(fmt.Sprintf("%s: %q is not a number", r.Key, raw))
		}
		p = r.Edit(v).Apply(p)
	}
	return p, nil
}

func profileDetails(p api.Profile) []ui.Param {
	details := []ui.Param{{Key: "Profile", Value: p.Name}}
	for _, r := range api.Params {
		details = append(details, ui.Param{Key: r.Label, Value: r.Format(r.Get(p))})
	}
	return details
}

func paramHelp() string {
	var b strings.Builder
	for _, r := range api.Params {
		fmt.Fprintf(&b, "  %-16s %s to %s (default %s)\n", r.Key, r.Format(r.Min), r.Format(r.Max), r.Format(r.Default))
	}
	return b.String()
}
