// Package transport defines the shell transport contract the apply engine
// and its items use to reach a remote host, and a concrete SSH
// implementation of it.
package transport

import (
	"context"
	"io"
)

// RunOptions configures a single remote command invocation.
type RunOptions struct {
	// MayFail suppresses treating a non-zero return code as a transport
	// error; the caller inspects Result.ReturnCode itself.
	MayFail bool
	Sudo    bool
	PTY     bool
	// Stdout/Stderr, when set, additionally receive a live copy of the
	// command's output as it streams in (for interactive/-v output).
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a single remote command invocation.
type Result struct {
	ReturnCode int
	Stdout     string
	Stderr     string
}

// UploadOptions describes how a file should land on the remote host.
type UploadOptions struct {
	Mode  string // e.g. "0644"; empty means "leave as uploaded"
	Owner string
	Group string
}

// Transport is everything the apply engine requires from a connection to
// one remote host. Item types depend on this interface, never on a
// concrete SSH client, so they can be exercised in tests against a fake.
type Transport interface {
	Run(ctx context.Context, command string, opts RunOptions) (Result, error)
	Upload(ctx context.Context, localPath, remotePath string, opts UploadOptions) error
	Download(ctx context.Context, remotePath, localPath string, ignoreFailure bool) error

	// DisconnectAll closes every open connection held by this transport.
	// The node lock calls this before and after its critical section: a
	// downstream operation may fork, and connections with per-process
	// affinity don't survive a fork. Transports without that constraint
	// (as this goroutine-based one is) can make this a no-op, but the
	// hook stays so a future transport with that constraint has
	// somewhere to put the teardown.
	DisconnectAll() error
}
