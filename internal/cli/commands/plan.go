package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlmorph/sqlmorph/internal/cli/output"
	"github.com/sqlmorph/sqlmorph/internal/dag"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	var affected string
	var upstream string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the execution plan",
		Long: `Build the table-level dependency graph across all units and print
the execution plan: groups of units that can run in parallel, ordered
so every producer finishes before its consumers start.

With --affected, print only the units downstream of the given unit, in
execution order. With --upstream, print the producers the given unit
depends on.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())

			eng, err := rt.NewEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			plan, err := eng.Plan(cmd.Context())
			if err != nil {
				return err
			}

			r := rt.Renderer
			if affected != "" {
				return renderAffected(r, plan.Graph(), affected)
			}
			if upstream != "" {
				return renderUpstream(r, plan.Graph(), upstream)
			}

			if r.Mode() == output.ModeJSON {
				doc, err := plan.JSON()
				if err != nil {
					return err
				}
				r.Println(doc)
				return nil
			}

			r.Println(r.Header(1, fmt.Sprintf("Execution plan (%d groups)", len(plan.Groups))))
			for i, group := range plan.Groups {
				r.Println(r.KeyValue(fmt.Sprintf("group %d", i+1), strings.Join(group, ", ")))
			}

			g := plan.Graph()
			if roots := g.GetRoots(); len(roots) > 0 {
				r.Println(r.KeyValue("entry units", strings.Join(roots, ", ")))
			}
			if leaves := g.GetLeaves(); len(leaves) > 0 {
				r.Println(r.KeyValue("terminal units", strings.Join(leaves, ", ")))
			}

			if desc := plan.Describe(); desc != "" {
				r.Println("")
				r.Println(r.Header(2, "Dependencies"))
				r.Println(desc)
			}

			shared := make([]string, 0, len(plan.Shared))
			for table := range plan.Shared {
				shared = append(shared, table)
			}
			sort.Strings(shared)
			for _, table := range shared {
				r.Println(r.Warn("shared table ") + table + " written by " + strings.Join(plan.Shared[table], ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&affected, "affected", "", "List the units downstream of this unit, in execution order")
	cmd.Flags().StringVar(&upstream, "upstream", "", "List the producers this unit depends on")

	return cmd
}

// renderAffected prints the unit and everything downstream of it, in an
// order every producer precedes its consumers.
func renderAffected(r *output.Renderer, g *dag.Graph, unit string) error {
	if _, ok := g.GetNode(unit); !ok {
		return fmt.Errorf("unknown unit %q", unit)
	}

	ids := g.GetAffectedNodes([]string{unit})
	sub := g.Subgraph(ids)
	ordered, err := sub.TopologicalSort()
	if err != nil {
		return err
	}

	r.Println(r.Header(1, fmt.Sprintf("Units affected by %s (%d)", unit, len(ordered))))
	for i, n := range ordered {
		r.Println(r.KeyValue(fmt.Sprintf("%d", i+1), n.ID))
	}
	return nil
}

func renderUpstream(r *output.Renderer, g *dag.Graph, unit string) error {
	if _, ok := g.GetNode(unit); !ok {
		return fmt.Errorf("unknown unit %q", unit)
	}

	ids := g.GetUpstreamNodes(unit)
	r.Println(r.Header(1, fmt.Sprintf("Producers of %s (%d)", unit, len(ids))))
	if len(ids) == 0 {
		r.Println("none; the unit reads only external tables")
		return nil
	}
	for _, id := range ids {
		r.Println(id)
	}
	return nil
}
