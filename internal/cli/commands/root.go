package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Kirdow/Coral/internal/cli/config"
	"github.com/Kirdow/Coral/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coral-host",
		Short: "Serve and inspect managed type metadata",
		Long: color.CyanString(`Coral - reflective bridge to a managed runtime

coral-host serves managed type metadata from a YAML catalog and lets you
probe any host speaking the Coral protocol.

Commands:
  • serve   expose a catalog over tcp or stdio
  • probe   resolve a type and print its base chain and members
  • types   list the types a catalog defines`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: coral.yml in the project root)")
	flags.String("transport", "", "host transport, tcp or stdio")
	flags.String("address", "", "host tcp address")
	flags.Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewProbeCommand())
	rootCmd.AddCommand(NewTypesCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the coral-host version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), noColor(cmd))
			kv.AddRow("Coral version", Version)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", goVer)
			kv.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd, err)
		return err
	}
	return nil
}

// reportedError carries a fully formatted message for Execute to print
type reportedError struct {
	opts ui.ErrorOptions
	err  error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

func reportError(cmd *cobra.Command, err error) {
	var re *reportedError
	if errors.As(err, &re) {
		ui.WriteError(cmd.ErrOrStderr(), re.opts)
		return
	}
	errorColor := color.New(color.FgRed, color.Bold)
	if noColor(cmd) {
		errorColor.DisableColor()
	}
	errorColor.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
}

func noColor(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("no-color")
	return v
}

// loadConfig reads the config named by --config and applies the host flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, &reportedError{opts: ui.ConfigError(err, noColor(cmd)), err: err}
	}

	if cmd.Flags().Changed("transport") {
		cfg.Host.Transport, _ = cmd.Flags().GetString("transport")
	}
	if cmd.Flags().Changed("address") {
		cfg.Host.Address, _ = cmd.Flags().GetString("address")
	}
	switch cfg.Host.Transport {
	case config.TransportTCP, config.TransportStdio:
	default:
		err := fmt.Errorf("unknown transport %q", cfg.Host.Transport)
		return nil, &reportedError{opts: ui.ConfigError(err, noColor(cmd)), err: err}
	}
	return cfg, nil
}
