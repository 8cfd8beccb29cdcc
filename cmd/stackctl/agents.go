package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAgentsCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List configured backends per role and tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			synth, err := buildSynthesizer(cmd, offline, false)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tTIER\tKIND\tPROVIDER\tMODEL")
			for _, d := range synth.Registry().Descriptors() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Role.Slug(), d.Tier, d.Kind, d.Provider, d.Model)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "show the rule-based registry")
	return cmd
}
