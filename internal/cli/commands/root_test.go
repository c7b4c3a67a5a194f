package commands

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirdow/Coral/internal/catalog"
	"github.com/Kirdow/Coral/internal/cli/ui"
	"github.com/Kirdow/Coral/internal/hostrpc"
	"github.com/Kirdow/Coral/pkg/coral"
)

const zooPath = "../../catalog/testdata/zoo.yml"

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "coral-host" {
		t.Errorf("expected Use to be 'coral-host', got %s", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if cmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	for _, expected := range []string{"version", "serve", "probe", "types"} {
		sub, _, err := cmd.Find([]string{expected})
		if err != nil || sub.Name() != expected {
			t.Errorf("expected command %s to be registered", expected)
		}
	}

	for _, flag := range []string{"config", "transport", "address", "no-color"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestNewVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	BuildDate = "2025-01-01"
	GoVersion = "go1.23"

	out, _, err := runCommand(t, "version", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "Coral version: 1.0.0-test")
	assert.Contains(t, out, "Git commit:    abc123")
	assert.Contains(t, out, "Go version:    go1.23")
}

func TestReportError(t *testing.T) {
	t.Run("formatted", func(t *testing.T) {
		cmd := NewRootCommand()
		var stderr bytes.Buffer
		cmd.SetErr(&stderr)

		err := &reportedError{
			opts: ui.HostError(coral.ErrHostUnavailable, nil, true),
			err:  coral.ErrHostUnavailable,
		}
		reportError(cmd, err)

		assert.Contains(t, stderr.String(), "HOST UNAVAILABLE")
		assert.True(t, errors.Is(err, coral.ErrHostUnavailable))
	})

	t.Run("plain", func(t *testing.T) {
		cmd := NewRootCommand()
		var stderr bytes.Buffer
		cmd.SetErr(&stderr)

		reportError(cmd, errors.New("boom"))
		assert.Contains(t, stderr.String(), "Error: boom")
	})
}

func TestLoadConfigFlags(t *testing.T) {
	t.Run("unknown transport", func(t *testing.T) {
		cfg := writeConfig(t, "")
		_, stderr, err := runCommand(t, "probe", "App.Dog", "--config", cfg, "--transport", "pigeon", "--no-color")
		require.Error(t, err)
		assert.Contains(t, stderr, "CONFIGURATION ERROR")
		assert.Contains(t, stderr, "pigeon")
	})

	t.Run("missing explicit config", func(t *testing.T) {
		_, stderr, err := runCommand(t, "types", "--config", filepath.Join(t.TempDir(), "nope.yml"), "--no-color")
		require.Error(t, err)
		assert.Contains(t, stderr, "CONFIGURATION ERROR")
	})
}

// runCommand executes the root command the way Execute does and returns what
// it wrote to stdout and stderr
func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCommandContext(t, context.Background(), args...)
}

func runCommandContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr syncBuffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		reportError(cmd, err)
	}
	return stdout.String(), stderr.String(), err
}

// syncBuffer is a bytes.Buffer safe to read while a command writes to it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coral.yml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"+content), 0o644))
	return path
}

// catalogConfig points catalog.path at the zoo catalog
func catalogConfig(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs(zooPath)
	require.NoError(t, err)
	return "catalog:\n  path: " + strings.ReplaceAll(abs, `\`, `/`) + "\n"
}

// startZooHost serves the zoo catalog over tcp and returns its address
func startZooHost(t *testing.T) string {
	t.Helper()

	cat, err := catalog.Load(zooPath)
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hostrpc.NewServer(cat, hostrpc.ServerOptions{}).Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
		cat.Close()
	})
	return ln.Addr().String()
}
