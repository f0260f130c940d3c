package cmd

import (
	"fmt"

	"github.com/stridecoach/stridecoach/internal/config"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Stridecoach",
		Long:  `All software has versions. This is Stridecoach's.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version: %s\n", config.Version)
			fmt.Printf("Commit Hash: %s\n", config.CommitHash)
			fmt.Printf("Build Timestamp: %s\n", config.BuildTimestamp)
		},
	}
}
