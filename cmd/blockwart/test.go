package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Validate a node's item construction without touching the remote host",
	RunE:  runTest,
}

func init() {
	addNodeFlags(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	cfg := loadConfigAndLogging()
	n, err := loadNode(cfg)
	if err != nil {
		return fmt.Errorf("load node: %w", err)
	}

	results, err := n.Test(context.Background(), cfg.Workers)
	if err != nil {
		return fmt.Errorf("test %s: %w", flagNodeName, err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "  %s: %v\n", r.ItemID, r.Err)
		}
	}
	fmt.Fprintf(os.Stdout, "%s: %d/%d items well-formed\n", flagNodeName, len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}
