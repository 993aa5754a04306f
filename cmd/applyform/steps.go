package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/applyform/internal/application"
)

func newStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the steps of the application form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := application.Steps().Steps()
			rows := make([][]string, 0, len(steps))
			for i, s := range steps {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					s.Title,
					string(s.View),
					strings.Join(s.Fields, ", "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "Title", "View", "Fields"}, rows))
			return nil
		},
	}
}
