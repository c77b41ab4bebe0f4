package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlmorph/sqlmorph/internal/cli/output"
)

// unitInfo is the JSON shape of one extracted unit.
type unitInfo struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Steps      int      `json:"steps"`
	Complexity string   `json:"complexity"`
	Variables  []string `json:"variables,omitempty"`
	Reads      []string `json:"reads,omitempty"`
	Writes     []string `json:"writes,omitempty"`
	Source     string   `json:"source"`
	Hash       string   `json:"hash"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Extract legacy unit definitions",
		Long: `Parse every XML unit export under the source directory and report
the extracted units: steps, table references, placeholder variables,
and complexity. Nothing is translated or written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())

			eng, err := rt.NewEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			units, skips, err := eng.Extract(cmd.Context())
			if err != nil {
				return err
			}

			r := rt.Renderer
			if r.Mode() == output.ModeJSON {
				infos := make([]unitInfo, 0, len(units))
				for _, su := range units {
					infos = append(infos, unitInfo{
						Name:       su.Unit.Name,
						Kind:       string(su.Unit.Kind),
						Steps:      len(su.Unit.Steps),
						Complexity: string(su.Unit.Complexity),
						Variables:  su.Unit.Variables,
						Reads:      su.Unit.Reads(),
						Writes:     su.Unit.Writes(),
						Source:     su.Artifact.RelPath,
						Hash:       su.Artifact.Hash,
					})
				}
				return r.JSON(map[string]any{
					"units":   infos,
					"skipped": skips,
				})
			}

			rows := make([][]string, 0, len(units))
			for _, su := range units {
				rows = append(rows, []string{
					su.Unit.Name,
					string(su.Unit.Kind),
					fmt.Sprintf("%d", len(su.Unit.Steps)),
					string(su.Unit.Complexity),
					strings.Join(su.Unit.Variables, ", "),
					su.Artifact.RelPath,
				})
			}
			r.Println(r.Header(1, fmt.Sprintf("Units (%d extracted, %d skipped)", len(units), len(skips))))
			r.Table([]string{"Unit", "Kind", "Steps", "Complexity", "Variables", "Source"}, rows)

			for _, s := range skips {
				r.Println(r.Warn("skipped ") + s.Source + ": " + s.Reason)
			}
			return nil
		},
	}
}
