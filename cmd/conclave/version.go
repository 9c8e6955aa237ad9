package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/conclave/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "conclave version %s\n", version.Info())
	},
}
