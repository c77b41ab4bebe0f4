package dag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sqlmorph/sqlmorph/internal/extract"
)

// Plan is the scheduled execution order for a set of units.
type Plan struct {
	// Groups holds unit names by execution level; units within one
	// group have no dependencies on each other and may run in
	// parallel.
	Groups [][]string `json:"groups"`
	// Edges is the producer -> consumers adjacency list, for
	// diagnostics.
	Edges map[string][]string `json:"edges"`
	// Shared maps each table written by more than one unit to its
	// writers.
	Shared map[string][]string `json:"shared,omitempty"`

	graph *Graph
}

// Build constructs the dependency graph for a set of parsed units and
// schedules them into parallel groups. An edge runs from producer to
// consumer whenever a table one unit writes appears verbatim in
// another unit's reads; table names are compared case-insensitively
// with no placeholder resolution. Returns a CycleError when the units
// depend on each other cyclically.
func Build(units []*extract.ParsedUnit) (*Plan, error) {
	g := NewGraph()

	ordered := make([]*extract.ParsedUnit, len(units))
	copy(ordered, units)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	writers := make(map[string][]string) // upper table -> writer units
	for _, u := range ordered {
		g.AddNode(u.Name, u)
		for _, w := range u.Writes() {
			key := strings.ToUpper(w)
			if !contains(writers[key], u.Name) {
				writers[key] = append(writers[key], u.Name)
			}
		}
	}

	for _, u := range ordered {
		for _, r := range u.Reads() {
			for _, producer := range writers[strings.ToUpper(r)] {
				if producer == u.Name {
					// A unit reading its own output is not a
					// dependency.
					continue
				}
				if err := g.AddEdge(producer, u.Name); err != nil {
					return nil, fmt.Errorf("linking %s -> %s: %w", producer, u.Name, err)
				}
			}
		}
	}

	shared := make(map[string][]string)
	for table, names := range writers {
		if len(names) > 1 {
			shared[table] = names
			for _, n := range names {
				g.MarkShared(n)
			}
		}
	}
	if len(shared) == 0 {
		shared = nil
	}

	groups, err := g.GetExecutionLevels()
	if err != nil {
		return nil, err
	}

	edges := make(map[string][]string, g.NodeCount())
	for _, n := range g.GetAllNodes() {
		if consumers := g.GetChildren(n.ID); len(consumers) > 0 {
			sorted := make([]string, len(consumers))
			copy(sorted, consumers)
			sort.Strings(sorted)
			edges[n.ID] = sorted
		}
	}

	return &Plan{Groups: groups, Edges: edges, Shared: shared, graph: g}, nil
}

// Graph exposes the underlying dependency graph for subgraph and
// impact queries.
func (p *Plan) Graph() *Graph {
	return p.graph
}

// Describe renders the plan in arrow notation, one bracketed parallel
// group per hop:
//
//	[LOAD_REGION LOAD_STATUS] -> [LOAD_CUSTOMER] -> [RPT_DAILY]
func (p *Plan) Describe() string {
	parts := make([]string, 0, len(p.Groups))
	for _, group := range p.Groups {
		parts = append(parts, "["+strings.Join(group, " ")+"]")
	}
	return strings.Join(parts, " -> ")
}

// JSON renders the plan as indented JSON.
func (p *Plan) JSON() (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
