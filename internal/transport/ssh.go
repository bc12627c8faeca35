package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/bundlewrap/blockwart/internal/resil"
)

// SSHConfig configures a connection to one node over SSH, including the
// retry/circuit-breaker tuning applied to its operations.
type SSHConfig struct {
	Host            string
	Port            int
	User            string
	Auth            []ssh.AuthMethod
	HostKeyCallback ssh.HostKeyCallback
	ConnectTimeout  time.Duration
	DialRetries     int
	DialBackoff     time.Duration

	BreakerWindow   time.Duration
	BreakerFailPct  float64
	BreakerMinCalls int
	BreakerCooldown time.Duration
}

// SSHTransport is the concrete shell transport: command execution over an
// SSH session, file transfer over SFTP. Sessions are opened lazily and
// cached; DisconnectAll tears every cached connection down.
type SSHTransport struct {
	cfg     SSHConfig
	breaker *resil.CircuitBreaker

	mu     sync.Mutex
	client *ssh.Client
	sftp   *sftp.Client
}

// NewSSHTransport returns a transport bound to cfg. It does not dial until
// the first Run/Upload/Download call.
func NewSSHTransport(cfg SSHConfig) *SSHTransport {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	if cfg.DialRetries == 0 {
		cfg.DialRetries = 3
	}
	if cfg.DialBackoff == 0 {
		cfg.DialBackoff = 200 * time.Millisecond
	}
	if cfg.BreakerWindow == 0 {
		cfg.BreakerWindow = 30 * time.Second
	}
	if cfg.BreakerFailPct == 0 {
		cfg.BreakerFailPct = 0.5
	}
	if cfg.BreakerMinCalls == 0 {
		cfg.BreakerMinCalls = 5
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 10 * time.Second
	}
	return &SSHTransport{
		cfg:     cfg,
		breaker: resil.NewCircuitBreaker(cfg.BreakerWindow, 6, cfg.BreakerMinCalls, cfg.BreakerFailPct, cfg.BreakerCooldown, 2),
	}
}

func (t *SSHTransport) dial(ctx context.Context) (*ssh.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}

	clientCfg := &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            t.cfg.Auth,
		HostKeyCallback: t.cfg.HostKeyCallback,
		Timeout:         t.cfg.ConnectTimeout,
	}
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))

	client, err := resil.Retry(ctx, t.cfg.DialRetries, t.cfg.DialBackoff, func() (*ssh.Client, error) {
		return ssh.Dial("tcp", addr, clientCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	t.client = client
	return client, nil
}

func (t *SSHTransport) sftpClient(ctx context.Context) (*sftp.Client, error) {
	t.mu.Lock()
	if t.sftp != nil {
		defer t.mu.Unlock()
		return t.sftp, nil
	}
	t.mu.Unlock()

	client, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sftp != nil {
		return t.sftp, nil
	}
	sc, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("open sftp session: %w", err)
	}
	t.sftp = sc
	return sc, nil
}

// Run executes command in a fresh SSH session. Sudo wraps the command in
// "sudo -n"; pty requests an interactive pseudo-terminal (needed for
// commands that refuse to run without one, e.g. some sudo configurations).
func (t *SSHTransport) Run(ctx context.Context, command string, opts RunOptions) (Result, error) {
	if !t.breaker.Allow() {
		return Result{}, fmt.Errorf("transport circuit open for %s", t.cfg.Host)
	}

	result, err := t.run(ctx, command, opts)
	t.breaker.RecordResult(err == nil)
	return result, err
}

func (t *SSHTransport) run(ctx context.Context, command string, opts RunOptions) (Result, error) {
	client, err := t.dial(ctx)
	if err != nil {
		return Result{}, err
	}

	session, err := client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	if opts.PTY {
		if err := session.RequestPty("xterm", 80, 40, ssh.TerminalModes{}); err != nil {
			return Result{}, fmt.Errorf("request pty: %w", err)
		}
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = teeWriter(&stdout, opts.Stdout)
	session.Stderr = teeWriter(&stderr, opts.Stderr)

	toRun := command
	if opts.Sudo {
		toRun = "sudo -n -- " + command
	}

	runErr := session.Run(toRun)
	result := Result{
		ReturnCode: 0,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			result.ReturnCode = exitErr.ExitStatus()
		} else {
			return result, fmt.Errorf("run %q: %w", command, runErr)
		}
	}

	if result.ReturnCode != 0 && !opts.MayFail {
		return result, fmt.Errorf("command %q exited %d: %s", command, result.ReturnCode, result.Stderr)
	}

	return result, nil
}

// Upload copies a local file to remotePath and applies mode/owner/group
// via follow-up commands, since SFTP writes land with the session
// user's default ownership.
func (t *SSHTransport) Upload(ctx context.Context, localPath, remotePath string, opts UploadOptions) error {
	sc, err := t.sftpClient(ctx)
	if err != nil {
		return err
	}

	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer local.Close()

	if err := sc.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("mkdir remote dir: %w", err)
	}

	remote, err := sc.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file: %w", err)
	}
	defer remote.Close()

	if _, err := io.Copy(remote, local); err != nil {
		return fmt.Errorf("copy to remote: %w", err)
	}

	if opts.Mode != "" {
		if _, err := t.Run(ctx, fmt.Sprintf("chmod %s -- %s", shellQuote(opts.Mode), shellQuote(remotePath)), RunOptions{Sudo: true}); err != nil {
			return fmt.Errorf("chmod uploaded file: %w", err)
		}
	}
	if opts.Owner != "" || opts.Group != "" {
		owner := opts.Owner
		if opts.Group != "" {
			owner = owner + ":" + opts.Group
		}
		if _, err := t.Run(ctx, fmt.Sprintf("chown %s -- %s", shellQuote(owner), shellQuote(remotePath)), RunOptions{Sudo: true}); err != nil {
			return fmt.Errorf("chown uploaded file: %w", err)
		}
	}

	return nil
}

// Download copies a remote file to localPath. ignoreFailure swallows any
// error and returns nil, used by the lock's best-effort info-file fetch.
func (t *SSHTransport) Download(ctx context.Context, remotePath, localPath string, ignoreFailure bool) error {
	err := t.download(ctx, remotePath, localPath)
	if err != nil && ignoreFailure {
		return nil
	}
	return err
}

func (t *SSHTransport) download(ctx context.Context, remotePath, localPath string) error {
	sc, err := t.sftpClient(ctx)
	if err != nil {
		return err
	}

	remote, err := sc.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote file: %w", err)
	}
	defer remote.Close()

	local, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local file: %w", err)
	}
	defer local.Close()

	if _, err := io.Copy(local, remote); err != nil {
		return fmt.Errorf("copy from remote: %w", err)
	}
	return nil
}

// DisconnectAll closes the cached SFTP and SSH connections.
func (t *SSHTransport) DisconnectAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	if t.sftp != nil {
		if err := t.sftp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		t.sftp = nil
	}
	if t.client != nil {
		if err := t.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		t.client = nil
	}
	return firstErr
}

func teeWriter(primary *bytes.Buffer, extra io.Writer) io.Writer {
	if extra == nil {
		return primary
	}
	return io.MultiWriter(primary, extra)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
