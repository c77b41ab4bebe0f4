package translate

// rule.go - Prioritized (matcher, rewriter) rule registration.

import "sort"

// Phase orders rule application. Structural rewrites change statement
// shape (join conversion, ROWNUM, CONNECT BY) and must run before
// function-level rewrites, which may depend on the canonical shape.
type Phase int

const (
	// PhaseStructural rules rewrite statement structure.
	PhaseStructural Phase = iota
	// PhaseFunction rules rewrite individual function calls and
	// column expressions.
	PhaseFunction
)

// NoteLevel grades a translation note for confidence aggregation.
type NoteLevel int

const (
	// NoteInfo records a rewrite that needs no review.
	NoteInfo NoteLevel = iota
	// NoteReview marks a construct passed through or rewritten with a
	// caveat; it downgrades confidence to medium.
	NoteReview
	// NoteAmbiguous marks a construct the rule could not decide on;
	// it downgrades confidence to low.
	NoteAmbiguous
)

func (l NoteLevel) String() string {
	switch l {
	case NoteReview:
		return "review"
	case NoteAmbiguous:
		return "ambiguous"
	default:
		return "info"
	}
}

// Note is one observation recorded during translation.
type Note struct {
	Rule    string    `json:"rule"`
	Level   NoteLevel `json:"level"`
	Message string    `json:"message"`
}

// ruleContext carries shared state through a single translation.
type ruleContext struct {
	lookup  TypeLookup
	allowed map[string]struct{}
	renames map[string]string
	notes   []Note
}

func (rc *ruleContext) note(rule string, level NoteLevel, msg string) {
	rc.notes = append(rc.notes, Note{Rule: rule, Level: level, Message: msg})
}

// Rule is one deterministic rewrite: a matcher and rewriter evaluated
// against the statement text. Apply returns the rewritten statement
// and whether the rule matched; a rule that does not match must return
// its input unchanged.
type Rule struct {
	Name     string
	Phase    Phase
	Priority int // lower runs earlier within a phase
	Apply    func(rc *ruleContext, sql string) (string, bool)
}

// RuleSet is an ordered collection of rules.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Add registers rules. Ordering is recomputed on demand, so rules may
// be added in any order.
func (rs *RuleSet) Add(rules ...Rule) *RuleSet {
	rs.rules = append(rs.rules, rules...)
	return rs
}

// ordered returns rules sorted by phase then priority then name.
// Name is the final tiebreak so application order is deterministic.
func (rs *RuleSet) ordered() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Phase != out[j].Phase {
			return out[i].Phase < out[j].Phase
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of registered rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
