package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codesight-dev/codesight/analysis"
	"github.com/codesight-dev/codesight/config"
	"github.com/codesight-dev/codesight/llmbridge"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var debug bool

	root := &cobra.Command{
		Use:           "codesight",
		Short:         "Codebase insight generation via LLM providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Missing .env is fine; keys may already be exported.
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "codesight.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable request-flow logging")

	root.AddCommand(newAskCommand(&configPath, &debug))
	root.AddCommand(newPlanCommand(&configPath, &debug))
	return root
}

func newService(configPath string, debug bool) (*llmbridge.Service, error) {
	f, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg := f.EngineConfig()
	cfg.Debug = debug
	return llmbridge.NewService(cfg)
}

func newAskCommand(configPath *string, debug *bool) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send a one-shot prompt and print the parsed result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(*configPath, *debug)
			if err != nil {
				return err
			}
			result, err := svc.Request(context.Background(), llmbridge.Request{
				Prompt:   args[0],
				Provider: provider,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "provider name (default from config)")
	return cmd
}

func newPlanCommand(configPath *string, debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <summary.json>",
		Short: "Create an analysis plan from a project summary file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read summary: %w", err)
			}
			var summary analysis.ProjectSummary
			if err := json.Unmarshal(raw, &summary); err != nil {
				return fmt.Errorf("parse summary: %w", err)
			}

			svc, err := newService(*configPath, *debug)
			if err != nil {
				return err
			}
			plan, err := analysis.NewPlanner(svc).CreatePlan(context.Background(), summary)
			if err != nil {
				return err
			}
			return printJSON(cmd, plan)
		},
	}
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
