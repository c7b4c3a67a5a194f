package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kirdow/Coral/internal/catalog"
	"github.com/Kirdow/Coral/internal/cli/config"
	"github.com/Kirdow/Coral/internal/cli/ui"
	"github.com/Kirdow/Coral/internal/logging"
	"github.com/Kirdow/Coral/internal/session"
	"github.com/Kirdow/Coral/pkg/coral"
)

// NewProbeCommand creates the probe command
func NewProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [type]",
		Short: "Resolve a type on the host and describe it",
		Long: `Resolve a managed type by name, or the runtime type of an object
handle, and print its identity and base chain.`,
		Example: `  coral-host probe App.Dog --members
  coral-host probe --object 7
  coral-host probe App.Dog --assignable-to App.IPet`,
		Args: cobra.MaximumNArgs(1),
		RunE: runProbe,
	}

	cmd.Flags().Uint64("object", 0, "probe the runtime type of this object handle")
	cmd.Flags().Bool("members", false, "list fields and methods")
	cmd.Flags().Bool("qualified", false, "print member types by assembly-qualified name")
	cmd.Flags().String("assignable-to", "", "also check assignability to this type")
	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	byObject := cmd.Flags().Changed("object")
	if byObject == (len(args) == 1) {
		return errors.New("probe needs either a type name or --object")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	s, err := session.Open(ctx, cfg, session.WithLogger(logger))
	if err != nil {
		return hostFailure(cmd, cfg, err)
	}
	defer s.Close()
	if sid := s.CacheSession(); sid != "" {
		logger.Debug("using metadata cache", zap.String("session", sid))
	}

	var t *coral.ReflectionType
	if byObject {
		handle, _ := cmd.Flags().GetUint64("object")
		t, err = s.Host.GetTypeFromObject(ctx, coral.ObjectHandle(handle))
	} else {
		t, err = s.Host.GetType(ctx, args[0])
	}
	if err != nil {
		return hostFailure(cmd, cfg, err)
	}

	members, _ := cmd.Flags().GetBool("members")
	qualified, _ := cmd.Flags().GetBool("qualified")
	out := cmd.OutOrStdout()
	if err := ui.RenderType(ctx, out, t, ui.TypeViewOptions{
		NoColor:   noColor(cmd),
		Members:   members,
		Qualified: qualified,
	}); err != nil {
		return hostFailure(cmd, cfg, err)
	}

	target, _ := cmd.Flags().GetString("assignable-to")
	if target == "" {
		return nil
	}
	other, err := s.Host.GetType(ctx, target)
	if err != nil {
		return hostFailure(cmd, cfg, err)
	}
	ok, err := t.IsAssignableTo(ctx, other)
	if err != nil {
		return hostFailure(cmd, cfg, err)
	}

	fmt.Fprintln(out)
	kv := ui.NewKeyValueTable(out, noColor(cmd))
	kv.AddRow("Assignable to "+other.FullName(), strconv.FormatBool(ok))
	kv.Render()
	return nil
}

// hostFailure formats a coral error. Unresolved names are matched against the
// local catalog, when one is configured, to suggest alternatives.
func hostFailure(cmd *cobra.Command, cfg *config.Config, err error) error {
	var suggestions []string
	var te *coral.TypeError
	if coral.IsUnresolvedType(err) && errors.As(err, &te) && te.Type != "" && cfg.Catalog.Path != "" {
		if cat, lerr := catalog.Load(cfg.Catalog.Path); lerr == nil {
			suggestions = ui.SuggestTypes(te.Type, cat.Names(), nil)
			cat.Close()
		}
	}
	return &reportedError{opts: ui.HostError(err, suggestions, noColor(cmd)), err: err}
}
