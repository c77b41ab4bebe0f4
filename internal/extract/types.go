package extract

// types.go - Intermediate representation produced by artifact extraction

// ArtifactKind identifies the shape of a source artifact.
type ArtifactKind string

const (
	// KindStatement is a single-statement unit definition.
	KindStatement ArtifactKind = "statement"
	// KindWorkflow is a multi-step orchestration definition.
	KindWorkflow ArtifactKind = "workflow"
)

// Valid returns true if the kind is one of the supported artifact kinds.
func (k ArtifactKind) Valid() bool {
	return k == KindStatement || k == KindWorkflow
}

// Complexity buckets a unit by its step count.
type Complexity string

const (
	ComplexityLow    Complexity = "low"    // fewer than 5 steps
	ComplexityMedium Complexity = "medium" // 5 to 15 steps
	ComplexityHigh   Complexity = "high"   // more than 15 steps
)

// complexityFor buckets a step count into a complexity score.
// This is a pure function of step count, never of SQL content.
func complexityFor(steps int) Complexity {
	switch {
	case steps < 5:
		return ComplexityLow
	case steps <= 15:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

// Step is one ordered operation inside a unit.
type Step struct {
	// Name is the step name as declared in the artifact
	Name string `json:"name"`
	// Kind is the declared step kind (e.g. "insert", "merge", "truncate")
	Kind string `json:"kind"`
	// SQL is the embedded SQL text, empty for steps without a SQL block
	SQL string `json:"sql,omitempty"`
	// Reads are the declared input table references, verbatim
	Reads []string `json:"reads,omitempty"`
	// Writes are the declared output table references, verbatim
	Writes []string `json:"writes,omitempty"`
	// Truncate is true if the step truncates its target before writing
	Truncate bool `json:"truncate,omitempty"`
}

// ParsedUnit is the structured representation of one extracted artifact.
// A ParsedUnit is created fresh on every extraction and never mutated;
// re-extracting an artifact replaces its unit wholesale.
type ParsedUnit struct {
	// Name is the unit name declared in the artifact
	Name string `json:"name"`
	// Kind is the artifact kind the unit was extracted as
	Kind ArtifactKind `json:"kind"`
	// Steps are the ordered operations of the unit
	Steps []Step `json:"steps"`
	// Variables are the distinct placeholder tokens found in any text
	// field, in first-seen order, unresolved
	Variables []string `json:"variables,omitempty"`
	// Complexity is the derived step-count bucket
	Complexity Complexity `json:"complexity"`
}

// Reads returns the union of all declared input tables across steps,
// deduplicated, in first-seen order.
func (u *ParsedUnit) Reads() []string {
	return collectRefs(u.Steps, func(s Step) []string { return s.Reads })
}

// Writes returns the union of all declared output tables across steps,
// deduplicated, in first-seen order.
func (u *ParsedUnit) Writes() []string {
	return collectRefs(u.Steps, func(s Step) []string { return s.Writes })
}

func collectRefs(steps []Step, pick func(Step) []string) []string {
	seen := make(map[string]struct{})
	var refs []string
	for _, s := range steps {
		for _, t := range pick(s) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			refs = append(refs, t)
		}
	}
	return refs
}
