package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirdow/Coral/internal/hostrpc"
	"github.com/Kirdow/Coral/pkg/coral"
)

func TestServeCommand(t *testing.T) {
	cmd := NewServeCommand()
	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Long)
	require.NotNil(t, cmd.Flags().Lookup("catalog"))
	assert.Error(t, cmd.Args(cmd, []string{"extra"}))
}

func TestServeTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := writeConfig(t, "")
	var (
		stderr string
		done   = make(chan error, 1)
		buf    syncBuffer
	)
	go func() {
		cmd := NewRootCommand()
		cmd.SetOut(&buf)
		cmd.SetErr(&buf)
		cmd.SetArgs([]string{"serve", "--config", cfg, "--catalog", zooPath, "--address", "127.0.0.1:0", "--no-color"})
		done <- cmd.ExecuteContext(ctx)
	}()

	var addr string
	require.Eventually(t, func() bool {
		stderr = buf.String()
		i := strings.Index(stderr, " on ")
		if i < 0 || !strings.Contains(stderr[i:], "\n") {
			return false
		}
		addr = strings.TrimSpace(stderr[i+len(" on "):])
		return true
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, stderr, "✓ Serving 12 types")

	client, err := hostrpc.Dial(ctx, "tcp", addr, hostrpc.ClientOptions{})
	require.NoError(t, err)
	host, err := coral.Open(client)
	require.NoError(t, err)

	dog, err := host.GetType(ctx, "App.Dog")
	require.NoError(t, err)
	assert.Equal(t, "App.Dog, App", dog.AssemblyQualifiedName())
	require.NoError(t, host.Close())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeWithoutCatalogWarns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := writeConfig(t, "")
	var buf syncBuffer
	done := make(chan error, 1)
	go func() {
		cmd := NewRootCommand()
		cmd.SetOut(&buf)
		cmd.SetErr(&buf)
		cmd.SetArgs([]string{"serve", "--config", cfg, "--address", "127.0.0.1:0", "--no-color"})
		done <- cmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Serving 7 types")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), "built-in types only")

	cancel()
	assert.NoError(t, <-done)
}

func TestServeBadCatalog(t *testing.T) {
	_, _, err := runCommand(t, "serve", "--config", writeConfig(t, ""), "--catalog", "missing.yml")
	assert.Error(t, err)
}
