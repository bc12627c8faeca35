package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/bundlewrap/blockwart/internal/config"
	"github.com/bundlewrap/blockwart/internal/node"
	"github.com/bundlewrap/blockwart/internal/obs"
	"github.com/bundlewrap/blockwart/internal/repo"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// Flags shared by every subcommand that touches a node.
var (
	flagNodeFile string
	flagNodeName string
	flagSSHHost  string
	flagSSHPort  int
	flagSSHUser  string
	flagIdentity string
)

// addNodeFlags binds the node/SSH flags common to apply, verify, and test.
func addNodeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagNodeFile, "node-file", "", "path to the node's YAML definition")
	cmd.Flags().StringVar(&flagNodeName, "node", "", "node name (used as SSH host unless --ssh-host is set)")
	cmd.Flags().StringVar(&flagSSHHost, "ssh-host", "", "SSH host override")
	cmd.Flags().IntVar(&flagSSHPort, "ssh-port", 0, "SSH port override")
	cmd.Flags().StringVar(&flagSSHUser, "ssh-user", "", "SSH user override")
	cmd.Flags().StringVar(&flagIdentity, "identity", "", "path to an SSH private key")
	_ = cmd.MarkFlagRequired("node-file")
	_ = cmd.MarkFlagRequired("node")
}

// loadConfigAndLogging resolves run configuration and wires slog (and,
// when enabled, OTel tracing/metrics) for the process; every subcommand
// calls this first.
func loadConfigAndLogging() *config.Config {
	obs.InitLogging()
	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.OTELEnabled {
		ctx := context.Background()
		traceShutdown := obs.InitTracer(ctx)
		metricShutdown := obs.InitMetrics(ctx)
		cobra.OnFinalize(func() {
			obs.Flush(ctx, traceShutdown)
			obs.Flush(ctx, metricShutdown)
		})
	}
	return cfg
}

// buildTransport constructs the SSH transport for one node from the
// shared flags and config defaults.
func buildTransport(cfg *config.Config) (transport.Transport, error) {
	host := flagSSHHost
	if host == "" {
		host = flagNodeName
	}
	port := flagSSHPort
	if port == 0 {
		port = cfg.SSH.Port
	}
	user := flagSSHUser
	if user == "" {
		user = cfg.SSH.User
	}

	var auth []ssh.AuthMethod
	if flagIdentity != "" {
		key, err := os.ReadFile(flagIdentity)
		if err != nil {
			return nil, fmt.Errorf("read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse identity file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	return transport.NewSSHTransport(transport.SSHConfig{
		Host:            host,
		Port:            port,
		User:            user,
		Auth:            auth,
		ConnectTimeout:  cfg.SSH.ConnectTimeout,
		DialRetries:     cfg.Resilience.MaxRetries,
		DialBackoff:     cfg.Resilience.BaseBackoff,
		BreakerWindow:   cfg.Resilience.BreakerWindow,
		BreakerFailPct:  cfg.Resilience.BreakerFailPct,
		BreakerMinCalls: cfg.Resilience.BreakerMinCalls,
		BreakerCooldown: cfg.Resilience.BreakerCooldown,
	}), nil
}

// loadNode resolves the transport and the node's item list together.
func loadNode(cfg *config.Config) (*node.Node, error) {
	t, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}
	return repo.LoadNode(flagNodeName, flagNodeFile, t)
}
