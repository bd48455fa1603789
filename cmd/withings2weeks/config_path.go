package main

import (
	"fmt"
	"path/filepath"

	"github.com/2beens/withings2weeks/internal/config"

	"github.com/spf13/cobra"
)

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-path",
		Short: "Print where the config and token files live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config dir:  %s\n", dir)
			fmt.Fprintf(out, "config file: %s\n", filepath.Join(dir, config.AppConfigFile))
			fmt.Fprintf(out, "token file:  %s\n", filepath.Join(dir, config.TokenFile))
			return nil
		},
	}
}
