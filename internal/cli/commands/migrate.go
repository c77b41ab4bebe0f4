package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlmorph/sqlmorph/internal/cli/output"
	"github.com/sqlmorph/sqlmorph/pkg/translate"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run the full migration pipeline",
		Long: `Extract every unit, build the execution plan, translate each
unit's SQL, and write warehouse model files. Already-registered
artifacts with unchanged content are reused, not retranslated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())

			eng, err := rt.NewEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			report, err := eng.Migrate(cmd.Context())
			r := rt.Renderer
			if report != nil && r.Mode() == output.ModeJSON {
				if jErr := r.JSON(report); jErr != nil {
					return jErr
				}
				return err
			}
			if err != nil {
				return err
			}

			r.Println(r.Header(1, "Migration run "+report.RunID))

			rows := make([][]string, 0, len(report.Units))
			lowCount := 0
			for _, u := range report.Units {
				detail := u.Model
				if u.Reason != "" {
					detail = u.Reason
				}
				if u.Confidence == translate.ConfidenceLow {
					lowCount++
				}
				rows = append(rows, []string{u.Unit, u.Action, string(u.Confidence), detail})
			}
			r.Table([]string{"Unit", "Action", "Confidence", "Detail"}, rows)

			r.Println(r.Success(fmt.Sprintf("%d produced", report.Produced)) +
				fmt.Sprintf(", %d reused, %d skipped", report.Reused, report.Skipped))
			if lowCount > 0 {
				r.Println(r.Warn(fmt.Sprintf("%d unit(s) translated with low confidence; review their notes", lowCount)))
			}
			return nil
		},
	}
}
