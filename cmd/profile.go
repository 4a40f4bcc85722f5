package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ben4mn/Pulse/internal/curation"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// profileCmd groups interest profile subcommands.
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and manage the interest profile",
}

var profileExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the stored interest profile as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := buildApp(GetConfig())
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		p := a.Profiles.Load(ctx)
		out, err := yaml.Marshal(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s", out)
		return nil
	},
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored interest profile from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		p := curation.NewProfile()
		if err := yaml.Unmarshal(raw, p); err != nil {
			return fmt.Errorf("parse profile: %w", err)
		}

		a := buildApp(GetConfig())
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		a.Profiles.Save(ctx, p)
		fmt.Fprintf(cmd.OutOrStdout(), "imported profile with %d keywords\n", len(p.Keywords))
		return nil
	},
}

var profileResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the stored interest profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := buildApp(GetConfig())
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		a.Profiles.Reset(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), "profile reset")
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileExportCmd, profileImportCmd, profileResetCmd)
	rootCmd.AddCommand(profileCmd)
}
