package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/bundlewrap/blockwart/internal/engine"
	"github.com/bundlewrap/blockwart/internal/item"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// formatItemResult is a colored one-line summary per terminal item
// status.
func formatItemResult(status item.StatusCode, itemID string) string {
	switch status {
	case item.Failed, item.ActionFailed:
		return fmt.Sprintf("  %s %s failed\n", red("✘"), bold(itemID))
	case item.ActionOK:
		return fmt.Sprintf("  %s %s succeeded\n", green("✓"), bold(itemID))
	case item.Skipped, item.ActionSkipped:
		return fmt.Sprintf("  %s %s skipped\n", yellow("»"), bold(itemID))
	case item.Fixed:
		return fmt.Sprintf("  %s fixed %s\n", green("✓"), bold(itemID))
	default:
		return ""
	}
}

// printEvents writes one formatted line per status event that fixed,
// ran, failed or skipped something, staying silent on items that were
// already correct (plain OK).
func printEvents(w io.Writer, events []engine.StatusEvent) {
	for _, ev := range events {
		if line := formatItemResult(ev.Status, ev.ItemID); line != "" {
			fmt.Fprint(w, line)
		}
	}
}

// PrintApplyOutcome writes the formatted event stream followed by the
// node-level summary line, the combination the apply subcommand prints
// after a run completes.
func PrintApplyOutcome(w io.Writer, nodeName string, events []engine.StatusEvent, result *engine.Result) {
	printEvents(w, events)
	printSummary(w, nodeName, result)
}

// printSummary prints the node-level tally line at the end of an apply run.
func printSummary(w io.Writer, nodeName string, result *engine.Result) {
	fmt.Fprintf(w, "%s: %s %d, %s %d, %s %d, %s %d\n",
		bold(nodeName),
		green("correct"), result.Correct,
		green("fixed"), result.Fixed,
		yellow("skipped"), result.Skipped,
		red("failed"), result.Failed,
	)
}
