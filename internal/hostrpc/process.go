package hostrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/Kirdow/Coral/pkg/coral"
)

// processConn speaks to a child process over its standard streams
type processConn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	once sync.Once
	err  error
}

func (p *processConn) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *processConn) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close ends the child's input, which a host treats as shutdown, and reaps it
func (p *processConn) Close() error {
	p.once.Do(func() {
		p.stdin.Close()
		p.stdout.Close()
		if err := p.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				p.err = err
			}
		}
	})
	return p.err
}

// Spawn starts the host command and connects a client to its standard
// streams. The child's stderr is passed through. Cancelling ctx kills the
// child.
func Spawn(ctx context.Context, command []string, opts ClientOptions) (*Client, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("%w: no host command", coral.ErrHostUnavailable)
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %w", coral.ErrHostUnavailable, command[0], err)
	}

	if opts.Logger != nil {
		opts.Logger.Debug("host process started", zap.Strings("command", command), zap.Int("pid", cmd.Process.Pid))
	}
	return NewClient(&processConn{cmd: cmd, stdin: stdin, stdout: stdout}, opts), nil
}
