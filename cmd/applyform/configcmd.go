package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/applyform/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Write(path, config.Default(), force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("wrote %s", path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", config.DefaultPath, "Where to write the file")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
