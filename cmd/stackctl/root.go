package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stackctl",
		Short:         "StackApp advice pipeline tools",
		Long:          `stackctl runs the StackApp advice pipeline from the terminal: ask an agent, classify text, list backends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newAgentsCmd())
	rootCmd.AddCommand(newHashKeyCmd())

	return rootCmd
}
