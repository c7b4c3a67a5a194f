package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kirdow/Coral/internal/catalog"
	"github.com/Kirdow/Coral/internal/cli/config"
	"github.com/Kirdow/Coral/internal/cli/ui"
	"github.com/Kirdow/Coral/internal/hostrpc"
	"github.com/Kirdow/Coral/internal/logging"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a type catalog to Coral clients",
		Long: `Serve the managed types described by a YAML catalog.

With the tcp transport the host accepts any number of clients on
host.address. With the stdio transport it serves a single client on
stdin/stdout, which is how a client started with host.command talks
to it. Logs always go to stderr.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("catalog", "", "catalog file (default: catalog.path from the config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("catalog") {
		cfg.Catalog.Path, _ = cmd.Flags().GetString("catalog")
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer cat.Close()

	stderr := cmd.ErrOrStderr()
	if cfg.Catalog.Path == "" {
		fmt.Fprint(stderr, ui.Warning("No catalog configured, serving built-in types only", noColor(cmd)))
	}
	logger.Info("catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("types", len(cat.Names())),
	)

	server := hostrpc.NewServer(cat, hostrpc.ServerOptions{
		Encoding: cfg.Host.Encoding(),
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Host.Transport == config.TransportStdio {
		return server.ServeConn(ctx, hostrpc.Stdio())
	}

	ln, err := net.Listen("tcp", cfg.Host.Address)
	if err != nil {
		return err
	}
	fmt.Fprintln(stderr, ui.FormatSuccess(
		fmt.Sprintf("Serving %d types on %s", len(cat.Names()), ln.Addr()), noColor(cmd)))
	return server.Serve(ctx, ln)
}
