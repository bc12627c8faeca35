package node

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// DefaultLockPath is the marker directory used unless a caller overrides
// it, which tests do for isolation.
const DefaultLockPath = "/tmp/blockwart.lock"

// Lock guards a host against concurrent operators, cooperatively: a
// marker directory plus a small JSON info file, created with the
// remote shell's atomic mkdir-fails-if-exists semantics.
type Lock struct {
	transport   transport.Transport
	path        string
	interactive bool
	force       bool
	prompter    item.Prompter

	acquired bool
}

// NewLock constructs a lock scoped to path (DefaultLockPath unless the
// caller overrides it for test isolation). force skips contention
// entirely; when not forced and interactive is true, contention is
// resolved by prompting instead of failing outright.
func NewLock(t transport.Transport, path string, interactive, force bool, prompter item.Prompter) *Lock {
	if path == "" {
		path = DefaultLockPath
	}
	return &Lock{transport: t, path: path, interactive: interactive, force: force, prompter: prompter}
}

// Acquire tries to create the marker directory. On contention it returns
// *AlreadyLockedError unless force is set or the operator confirms an
// override.
func (l *Lock) Acquire(ctx context.Context) error {
	ctx, span := otel.Tracer("blockwart-node").Start(ctx, "lock.acquire")
	defer span.End()

	res, err := l.transport.Run(ctx, "mkdir "+shQuote(l.path), transport.RunOptions{MayFail: true})
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}

	if res.ReturnCode != 0 {
		contentions, _ := otel.Meter("blockwart-node").Int64Counter("blockwart_lock_contentions_total")
		contentions.Add(ctx, 1)
		info := l.fetchInfo(ctx)
		if !(l.force || (l.interactive && l.prompter != nil && l.prompter.Confirm(warningMessage(info), false))) {
			return &AlreadyLockedError{Info: info}
		}
	}

	if err := l.writeInfo(ctx); err != nil {
		return fmt.Errorf("write lock info: %w", err)
	}

	// A downstream operation may fork; connections with per-process
	// affinity don't survive that (see
	// internal/transport.Transport.DisconnectAll).
	return l.transport.DisconnectAll()
}

// Release removes the marker directory. A failure is logged by the
// caller, never returned as fatal — the apply has already completed.
func (l *Lock) Release(ctx context.Context) error {
	_, err := l.transport.Run(ctx, "rm -R "+shQuote(l.path), transport.RunOptions{MayFail: true})
	if derr := l.transport.DisconnectAll(); err == nil {
		err = derr
	}
	return err
}

func (l *Lock) fetchInfo(ctx context.Context) LockInfo {
	tmp, err := os.CreateTemp("", "blockwart-lock-*")
	if err != nil {
		return LockInfo{}
	}
	defer os.Remove(tmp.Name())
	tmp.Close()

	if err := l.transport.Download(ctx, l.path+"/info", tmp.Name(), true); err != nil {
		return LockInfo{}
	}
	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return LockInfo{}
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return LockInfo{}
	}
	return info
}

func (l *Lock) writeInfo(ctx context.Context) error {
	tmp, err := os.CreateTemp("", "blockwart-lock-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	info := LockInfo{Date: float64(time.Now().Unix()), User: currentUser(), Host: currentHost()}
	data, err := json.Marshal(info)
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	return l.transport.Upload(ctx, tmp.Name(), l.path+"/info", transport.UploadOptions{})
}

// warningMessage names who holds the lock and how long ago it was
// acquired.
func warningMessage(info LockInfo) string {
	if info.Date == 0 {
		return "WARNING: node is locked by an unknown operator. Override lock?"
	}
	acquired := time.Unix(int64(info.Date), 0)
	return fmt.Sprintf(
		"WARNING: node is locked by %s@%s, acquired %s ago (%s). Override lock?",
		orUnknown(info.User), orUnknown(info.Host),
		time.Since(acquired).Round(time.Second), acquired.Format(time.RFC1123),
	)
}

func orUnknown(s string) string {
	if s == "" {
		return "<unknown>"
	}
	return s
}
