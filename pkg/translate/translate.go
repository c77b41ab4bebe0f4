// Package translate rewrites SQL from the legacy source dialect
// (Oracle) to the target warehouse dialect using an ordered set of
// deterministic rewrite rules.
//
// Translation is a pure function of the SQL text, the rule set, and
// the column-type lookup: identical inputs always produce identical
// output, which is what allows results to be cached by content hash.
// The translator never guesses: constructs it does not recognize pass
// through unchanged and are surfaced in the result notes with a
// downgraded confidence.
package translate

import (
	"fmt"
	"strings"
)

// TypeLookup resolves a (table, column) pair to a declared storage
// type. It is consulted only for the numeric-encoded date rule.
// internal/catalog provides the standard implementation.
type TypeLookup interface {
	ColumnType(table, column string) (string, bool)
}

// AnyTableLookup is an optional extension of TypeLookup. When a column
// reference cannot be attributed to a table, the encoded-date rule
// falls back to it: the lookup reports a type only when exactly one
// known table declares the column.
type AnyTableLookup interface {
	ColumnTypeAny(column string) (string, bool)
}

// noLookup is the fallback when no catalog is supplied.
type noLookup struct{}

func (noLookup) ColumnType(_, _ string) (string, bool) { return "", false }

// Confidence grades how completely a statement was translated.
type Confidence string

const (
	// ConfidenceHigh means every construct matched a known rule or
	// allow-listed function.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium means some constructs passed through unchanged
	// but none were ambiguous.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceLow means at least one ambiguous or unmatched
	// construct was found.
	ConfidenceLow Confidence = "low"
)

// Result is the outcome of translating one statement.
type Result struct {
	SQL        string     `json:"sql"`
	Confidence Confidence `json:"confidence"`
	Notes      []Note     `json:"notes,omitempty"`
}

// Translator applies a rule set to SQL statements.
type Translator struct {
	rules   []Rule
	lookup  TypeLookup
	allowed map[string]struct{}
	renames map[string]string
}

// Option configures a Translator.
type Option func(*Translator)

// WithAllowList adds functions to the preserve-as-is allow-list.
// Allow-listed functions pass through without a note.
func WithAllowList(funcs ...string) Option {
	return func(t *Translator) {
		for _, f := range funcs {
			t.allowed[strings.ToUpper(f)] = struct{}{}
		}
	}
}

// WithRenames adds extra function renames on top of the rule set's
// builtin map.
func WithRenames(renames map[string]string) Option {
	return func(t *Translator) {
		for from, to := range renames {
			t.renames[strings.ToUpper(from)] = to
		}
	}
}

// New creates a Translator from a rule set and a column-type lookup.
// A nil lookup disables the numeric-encoded date rule's type check,
// which means no column is ever treated as an encoded date.
func New(rules *RuleSet, lookup TypeLookup, opts ...Option) *Translator {
	if lookup == nil {
		lookup = noLookup{}
	}

	t := &Translator{
		rules:   rules.ordered(),
		lookup:  lookup,
		allowed: make(map[string]struct{}),
		renames: make(map[string]string),
	}
	for f := range standardAllowList {
		t.allowed[f] = struct{}{}
	}
	for from, to := range functionRenames {
		t.renames[from] = to
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate rewrites one SQL statement. It never returns an error:
// untranslatable constructs are reported through notes and confidence.
func (t *Translator) Translate(sql string) Result {
	rc := &ruleContext{
		lookup:  t.lookup,
		allowed: t.allowed,
		renames: t.renames,
	}

	out := sql
	for _, rule := range t.rules {
		out, _ = rule.Apply(rc, out)
	}

	// Anything that still looks like an unknown function call is
	// passed through and flagged, never rewritten by guesswork.
	t.flagUnknownFunctions(rc, out)

	return Result{
		SQL:        out,
		Confidence: aggregateConfidence(rc.notes),
		Notes:      rc.notes,
	}
}

// flagUnknownFunctions records a review note for every function call
// that is neither allow-listed nor produced by a rewrite rule.
func (t *Translator) flagUnknownFunctions(rc *ruleContext, sql string) {
	toks := scanSQL(sql)
	seen := make(map[string]struct{})
	for i := 0; i < len(toks)-1; i++ {
		tk := toks[i]
		if tk.kind != tokIdent || isKeyword(tk.text) {
			continue
		}
		// Package-qualified calls are the package-call rule's concern.
		if strings.Contains(tk.text, ".") {
			continue
		}
		next := toks[i+1]
		if next.kind != tokSymbol || next.text != "(" {
			continue
		}
		name := strings.ToUpper(refColumn(tk.text))
		if _, ok := t.allowed[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		rc.note("unknown-function", NoteReview,
			fmt.Sprintf("function %s has no rewrite rule and is not allow-listed; passed through unchanged", tk.text))
	}
}

// aggregateConfidence folds note levels into a single grade.
func aggregateConfidence(notes []Note) Confidence {
	conf := ConfidenceHigh
	for _, n := range notes {
		switch n.Level {
		case NoteAmbiguous:
			return ConfidenceLow
		case NoteReview:
			conf = ConfidenceMedium
		}
	}
	return conf
}
