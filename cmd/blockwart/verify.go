package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Probe a node's state with no repair",
	RunE:  runVerify,
}

func init() {
	addNodeFlags(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := loadConfigAndLogging()
	n, err := loadNode(cfg)
	if err != nil {
		return fmt.Errorf("load node: %w", err)
	}

	results, err := n.Verify(context.Background(), cfg.Workers)
	if err != nil {
		return fmt.Errorf("verify %s: %w", flagNodeName, err)
	}

	wrong := 0
	for _, r := range results {
		if !r.Correct {
			wrong++
			fmt.Fprintf(os.Stdout, "  %s: needs fixing\n", r.ItemID)
		}
	}
	fmt.Fprintf(os.Stdout, "%s: %d/%d items correct\n", flagNodeName, len(results)-wrong, len(results))
	if wrong > 0 {
		os.Exit(1)
	}
	return nil
}
