// Package connection implements the SSH transport behind the device
// connection contract and the provider that walks a device's connection
// records until one works.
package connection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"firmup/internal/domain/device"
)

const (
	defaultDialTimeout    = 10 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// Credentials is resolved SSH auth material.
type Credentials struct {
	Password   string
	PrivateKey []byte
}

// AuthMethods converts the material into SSH client auth methods.
func (c Credentials) AuthMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if len(c.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(c.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("credentials carry no auth material")
	}
	return methods, nil
}

// LoadCredentials resolves a credentials label, reading the private key
// file if one is configured.
func LoadCredentials(store map[string]CredentialSource, label string) (Credentials, error) {
	source, ok := store[label]
	if !ok {
		return Credentials{}, fmt.Errorf("unknown credentials label %q", label)
	}
	creds := Credentials{Password: source.Password}
	if source.PrivateKeyPath != "" {
		key, err := os.ReadFile(source.PrivateKeyPath)
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to read private key %s: %w", source.PrivateKeyPath, err)
		}
		creds.PrivateKey = key
	}
	return creds, nil
}

// CredentialSource is configured auth material before resolution.
type CredentialSource struct {
	Password       string
	PrivateKeyPath string
}

// SSHConnection is an SSH session against the first reachable address of
// a candidate set. Safe for sequential use; the upgrade protocol drives
// one command at a time.
type SSHConnection struct {
	addresses      []string
	user           string
	port           int
	auth           []ssh.AuthMethod
	dialTimeout    time.Duration
	commandTimeout time.Duration

	mu     sync.Mutex
	client *ssh.Client
}

// SSHOption tunes an SSHConnection.
type SSHOption func(*SSHConnection)

// WithDialTimeout bounds the TCP+handshake phase per address.
func WithDialTimeout(d time.Duration) SSHOption {
	return func(c *SSHConnection) { c.dialTimeout = d }
}

// WithCommandTimeout sets the default per-command timeout.
func WithCommandTimeout(d time.Duration) SSHOption {
	return func(c *SSHConnection) { c.commandTimeout = d }
}

// NewSSHConnection builds an unconnected session.
func NewSSHConnection(addresses []string, user string, port int, creds Credentials, opts ...SSHOption) (*SSHConnection, error) {
	if len(addresses) == 0 {
		return nil, errors.New("at least one address is required")
	}
	auth, err := creds.AuthMethods()
	if err != nil {
		return nil, err
	}
	if user == "" {
		user = "root"
	}
	if port == 0 {
		port = 22
	}
	conn := &SSHConnection{
		addresses:      addresses,
		user:           user,
		port:           port,
		auth:           auth,
		dialTimeout:    defaultDialTimeout,
		commandTimeout: defaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(conn)
	}
	return conn, nil
}

// Connect dials the candidate addresses in order and keeps the first
// client that completes the handshake. An existing session is replaced.
func (c *SSHConnection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
	cfg := &ssh.ClientConfig{
		User: c.user,
		Auth: c.auth,
		// Device host keys rotate on every reflash, pinning them would
		// lock the fleet out of its own devices.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.dialTimeout,
	}
	var lastErr error
	for _, address := range c.addresses {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := net.JoinHostPort(address, fmt.Sprintf("%d", c.port))
		client, err := dialContext(ctx, target, cfg)
		if err != nil {
			lastErr = fmt.Errorf("dial %s: %w", target, err)
			continue
		}
		c.client = client
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no addresses to dial")
	}
	return lastErr
}

func dialContext(ctx context.Context, target string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: cfg.Timeout}
	tcp, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(tcp, target, cfg)
	if err != nil {
		_ = tcp.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Exec runs a command on the device. The exit code is -1 when the remote
// side closed the channel without reporting one, which on OpenWrt happens
// when sysupgrade kills the session mid-reflash.
func (c *SSHConnection) Exec(ctx context.Context, command string, opts ...device.ExecOption) (string, int, error) {
	options := device.ApplyExecOptions(opts)
	timeout := options.Timeout
	if timeout == 0 {
		timeout = c.commandTimeout
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return "", -1, errors.New("not connected")
	}
	session, err := client.NewSession()
	if err != nil {
		return "", -1, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var buf bytes.Buffer
	session.Stdout = &buf
	session.Stderr = &buf
	if err := session.Start(command); err != nil {
		return "", -1, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err = <-done:
	case <-timer.C:
		_ = session.Close()
		return buf.String(), -1, fmt.Errorf("command timed out after %s: %s", timeout, command)
	case <-ctx.Done():
		_ = session.Close()
		return buf.String(), -1, ctx.Err()
	}

	output := buf.String()
	exitCode := 0
	if err != nil {
		var exitErr *ssh.ExitError
		var missingErr *ssh.ExitMissingError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitStatus()
		case errors.As(err, &missingErr):
			exitCode = -1
		default:
			return output, -1, fmt.Errorf("command failed: %w", err)
		}
	}
	if !options.Accepts(exitCode) {
		return output, exitCode, fmt.Errorf("command %q exited with code %d: %s",
			command, exitCode, firstLine(output))
	}
	return output, exitCode, nil
}

// Upload streams content to a remote path through a shell redirect, which
// works on devices without an SFTP subsystem.
func (c *SSHConnection) Upload(ctx context.Context, content io.Reader, remotePath string) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return errors.New("not connected")
	}
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	if err := session.Start(fmt.Sprintf("cat > %s", remotePath)); err != nil {
		return fmt.Errorf("failed to start upload: %w", err)
	}

	copyErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(stdin, content)
		closeErr := stdin.Close()
		if err == nil {
			err = closeErr
		}
		copyErr <- err
	}()

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("upload to %s failed: %w", remotePath, err)
		}
	case <-ctx.Done():
		_ = session.Close()
		return ctx.Err()
	}
	if err := <-copyErr; err != nil {
		return fmt.Errorf("upload to %s failed: %w", remotePath, err)
	}
	return nil
}

// Addresses returns the candidate addresses this session dials.
func (c *SSHConnection) Addresses() []string {
	out := make([]string, len(c.addresses))
	copy(out, c.addresses)
	return out
}

// Close releases the current session if any.
func (c *SSHConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
