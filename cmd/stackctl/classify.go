package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"example.com/stackapp/backend/internal/advice"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Print the advice category for a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), advice.Classify(strings.Join(args, " ")))
			return nil
		},
	}
}
