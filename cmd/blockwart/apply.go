package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bundlewrap/blockwart/internal/cli"
	"github.com/bundlewrap/blockwart/internal/node"
)

var (
	applyInteractive bool
	applyForce       bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Converge a node against its desired state",
	RunE:  runApply,
}

func init() {
	addNodeFlags(applyCmd)
	applyCmd.Flags().BoolVarP(&applyInteractive, "interactive", "i", false, "confirm each change before applying it")
	applyCmd.Flags().BoolVarP(&applyForce, "force", "f", false, "override an existing node lock")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg := loadConfigAndLogging()
	n, err := loadNode(cfg)
	if err != nil {
		return fmt.Errorf("load node: %w", err)
	}

	prompter := cli.NewStdPrompter(os.Stdin, os.Stdout)
	workers := cfg.Workers
	if applyInteractive {
		workers = 1
	}

	events, result, err := n.Apply(context.Background(), node.ApplyOptions{
		Workers:     workers,
		Interactive: applyInteractive || cfg.Interactive,
		Force:       applyForce || cfg.Force,
		LockPath:    cfg.LockPath,
		Prompter:    prompter,
	})
	if err != nil {
		return fmt.Errorf("apply %s: %w", flagNodeName, err)
	}

	cli.PrintApplyOutcome(os.Stdout, flagNodeName, events, result)
	if result.Failed > 0 {
		os.Exit(1)
	}
	return nil
}
