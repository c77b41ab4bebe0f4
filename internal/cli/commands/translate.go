package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlmorph/sqlmorph/internal/cli/output"
)

// NewTranslateCommand creates the translate command.
func NewTranslateCommand() *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "translate [sql]",
		Short: "Translate a single SQL statement",
		Long: `Run one Oracle SQL statement through the translation rules and
print the result with its confidence and notes. The statement comes
from the argument, --file, or stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := GetRuntime(cmd.Context())

			sql, err := readStatement(cmd, args, fromFile)
			if err != nil {
				return err
			}

			eng, err := rt.NewEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			res := eng.Translator().Translate(sql)

			r := rt.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(res)
			}

			r.Println(res.SQL)
			r.Println("")
			r.Println(r.KeyValue("confidence", string(res.Confidence)))
			for _, n := range res.Notes {
				r.Println(r.KeyValue(n.Rule, fmt.Sprintf("[%s] %s", n.Level, n.Message)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read the statement from a file")
	return cmd
}

func readStatement(cmd *cobra.Command, args []string, fromFile string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", fromFile, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no SQL statement given; pass an argument, --file, or stdin")
	}
	return string(data), nil
}
