package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bundlewrap/blockwart/internal/engine"
	"github.com/bundlewrap/blockwart/internal/node"
	"github.com/bundlewrap/blockwart/internal/scheduler"
	"github.com/bundlewrap/blockwart/internal/store"
)

var scheduleCron string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-run apply for a node repeatedly on a cron expression",
	RunE:  runSchedule,
}

func init() {
	addNodeFlags(scheduleCmd)
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "@hourly", "cron expression for recurring apply")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg := loadConfigAndLogging()
	n, err := loadNode(cfg)
	if err != nil {
		return fmt.Errorf("load node: %w", err)
	}

	var hist *store.History
	if cfg.History.Enabled {
		hist, err = store.Open(cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("open history db: %w", err)
		}
		defer hist.Close()
	}

	onResult := func(jobName, nodeName string, result *engine.Result, applyErr error) {
		if hist == nil || result == nil {
			return
		}
		if err := hist.Record(store.Run{Node: nodeName, Start: result.Start, End: result.End, Result: *result}); err != nil {
			fmt.Fprintln(os.Stderr, "record history:", err)
		}
	}

	sched := scheduler.New(onResult)
	job := scheduler.ApplyJob{
		Name:     flagNodeName,
		CronExpr: scheduleCron,
		Nodes:    []*node.Node{n},
		Opts: node.ApplyOptions{
			Workers:  cfg.Workers,
			Force:    cfg.Force,
			LockPath: cfg.LockPath,
		},
	}

	ctx := context.Background()
	if err := sched.AddJob(ctx, job); err != nil {
		return fmt.Errorf("schedule %s: %w", flagNodeName, err)
	}
	sched.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopCtx, cancel := context.WithTimeout(ctx, cfg.SSH.ConnectTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}
