package device

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ExecOptions tune a single remote command execution.
type ExecOptions struct {
	// Timeout bounds the command; zero means the connection default.
	Timeout time.Duration
	// ExitCodes lists the exit codes accepted as non-errors. Empty means
	// only zero.
	ExitCodes []int
	// IgnoreExitCode accepts any exit code (transport errors still fail).
	IgnoreExitCode bool
}

// ExecOption mutates ExecOptions.
type ExecOption func(*ExecOptions)

// WithTimeout bounds the remote command execution.
func WithTimeout(d time.Duration) ExecOption {
	return func(o *ExecOptions) { o.Timeout = d }
}

// WithExitCodes declares the accepted exit codes.
func WithExitCodes(codes ...int) ExecOption {
	return func(o *ExecOptions) { o.ExitCodes = codes }
}

// WithAnyExitCode accepts whatever exit code the command returns.
func WithAnyExitCode() ExecOption {
	return func(o *ExecOptions) { o.IgnoreExitCode = true }
}

// ApplyExecOptions folds options into an ExecOptions value.
func ApplyExecOptions(opts []ExecOption) ExecOptions {
	var out ExecOptions
	for _, opt := range opts {
		opt(&out)
	}
	return out
}

// Accepts reports whether the given exit code is acceptable.
func (o ExecOptions) Accepts(code int) bool {
	if o.IgnoreExitCode {
		return true
	}
	if len(o.ExitCodes) == 0 {
		return code == 0
	}
	for _, c := range o.ExitCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Connection is a live remote session to a device. The transport itself
// (SSH handshake, key exchange) lives in infrastructure; this is the
// usage contract the upgrade protocol is written against.
type Connection interface {
	// Connect (re-)establishes the session against the current candidate
	// address set.
	Connect(ctx context.Context) error

	// Exec runs a command and returns its output and exit code. A
	// transport failure or an unaccepted exit code yields an error.
	Exec(ctx context.Context, command string, opts ...ExecOption) (output string, exitCode int, err error)

	// Upload streams content to a remote path.
	Upload(ctx context.Context, content io.Reader, remotePath string) error

	// Addresses returns the candidate addresses the session dials.
	Addresses() []string

	// Close releases the session. Safe to call on an unconnected session.
	Close() error
}

// NoWorkingConnectionError reports that none of a device's connection
// records currently work. Last carries the most recently attempted
// record (with its failure reason), or nil when the device has no
// connection records configured at all.
type NoWorkingConnectionError struct {
	Last *DeviceConnection
}

func (e *NoWorkingConnectionError) Error() string {
	if e.Last == nil {
		return "no connection configured for device"
	}
	if reason := e.Last.FailureReason(); reason != "" {
		return fmt.Sprintf("no working connection: %s", reason)
	}
	return "no working connection"
}

// Provider supplies working connections for devices. Implementations walk
// the device's connection records, persist working/failure state on each
// attempted record, and return the first session that connects.
type Provider interface {
	GetWorkingConnection(ctx context.Context, dev *Device) (Connection, *DeviceConnection, error)
}
