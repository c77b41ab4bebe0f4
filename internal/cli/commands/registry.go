package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlmorph/sqlmorph/internal/cli/output"
)

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the artifact registry",
	}
	cmd.AddCommand(newRegistryListCommand())
	cmd.AddCommand(newRegistryShowCommand())
	return cmd
}

func newRegistryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())

			eng, err := rt.NewEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			entries, err := eng.Registry().List()
			if err != nil {
				return err
			}

			r := rt.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(entries)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					shortHash(e.ContentHash),
					e.SourcePath,
					string(e.State),
					e.OutputID,
					strings.Join(e.Units, ", "),
				})
			}
			r.Println(r.Header(1, fmt.Sprintf("Registry (%d entries)", len(entries))))
			r.Table([]string{"Hash", "Source", "State", "Output", "Units"}, rows)
			return nil
		},
	}
}

func newRegistryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <content-hash>",
		Short: "Show one registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := GetRuntime(cmd.Context())

			eng, err := rt.NewEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			entry, err := eng.Registry().Get(args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no registry entry for hash %s", args[0])
			}

			r := rt.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(entry)
			}

			r.Println(r.Header(1, entry.SourcePath))
			r.Println(r.KeyValue("hash", entry.ContentHash))
			r.Println(r.KeyValue("state", string(entry.State)))
			r.Println(r.KeyValue("output", entry.OutputID))
			r.Println(r.KeyValue("output hash", entry.OutputHash))
			r.Println(r.KeyValue("units", strings.Join(entry.Units, ", ")))
			r.Println(r.KeyValue("reserved at", entry.ReservedAt.Format("2006-01-02 15:04:05")))
			if entry.CommittedAt != nil {
				r.Println(r.KeyValue("committed at", entry.CommittedAt.Format("2006-01-02 15:04:05")))
			}
			return nil
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
