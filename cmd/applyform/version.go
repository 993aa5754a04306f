package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), keyValues("",
				kv("version", accent(version)),
				kv("go", runtime.Version()),
				kv("platform", runtime.GOOS+"/"+runtime.GOARCH),
			))
		},
	}
}
