package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"example.com/stackapp/backend/internal/advice"
	"example.com/stackapp/backend/internal/config"
	"example.com/stackapp/backend/internal/server"
)

type askOptions struct {
	role    string
	userID  string
	tier    string
	paid    bool
	offline bool
	asJSON  bool
	savings float64
	income  float64
	verbose bool
}

func newAskCmd() *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask an agent for advice",
		Long:  `Run one request through the advice pipeline and print the structured response.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.role, "role", "stack-master", "agent role (stack-master, financial-analyst, market-analyst, expert-investor, accountant)")
	cmd.Flags().StringVar(&opts.userID, "user", "cli", "user id sent with the request")
	cmd.Flags().StringVar(&opts.tier, "tier", "free", "requested subscription tier (free, beta, premium)")
	cmd.Flags().BoolVar(&opts.paid, "paid", false, "claim a verified payment")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "skip model calls and use rule-based answers")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the response as JSON")
	cmd.Flags().Float64Var(&opts.savings, "savings", -1, "current savings, added to the request context")
	cmd.Flags().Float64Var(&opts.income, "income", -1, "monthly income, added to the request context")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "log pipeline events to stderr")

	return cmd
}

func runAsk(cmd *cobra.Command, opts *askOptions, message string) error {
	role, ok := advice.ParseRole(opts.role)
	if !ok {
		return fmt.Errorf("unknown role: %s", opts.role)
	}

	synth, err := buildSynthesizer(cmd, opts.offline, opts.verbose)
	if err != nil {
		return err
	}

	reqContext := map[string]any{}
	if opts.savings >= 0 {
		reqContext["savings"] = opts.savings
	}
	if opts.income >= 0 {
		reqContext["income"] = opts.income
	}

	result, err := synth.Advise(cmd.Context(), advice.Input{
		Request: advice.Request{UserID: opts.userID, Message: message, Context: reqContext},
		Role:    role,
		Tier:    advice.ParseTier(opts.tier),
		Claim:   advice.SubscriptionClaim{Tier: opts.tier, PaymentVerified: opts.paid},
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result.Response)
	}

	printResponse(out, result)
	return nil
}

func buildSynthesizer(cmd *cobra.Command, offline, verbose bool) (*advice.Synthesizer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if offline {
		cfg.AI.Mode = "rule_based"
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Log.Level}))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return server.BuildPipeline(ctx, cfg, logger)
}

func printResponse(out io.Writer, result advice.Result) {
	fmt.Fprintf(out, "%s\n\n", result.Response.Text)
	fmt.Fprintf(out, "Category: %s (%s via %s)\n", result.Response.Category, result.Source, result.Backend.Provider)
	fmt.Fprintln(out, "Steps:")
	for i, step := range result.Response.ActionableSteps {
		fmt.Fprintf(out, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintf(out, "\n%s\n", result.Response.MotivationalMessage)
}
