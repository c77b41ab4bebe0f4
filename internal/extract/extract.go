// Package extract parses legacy ETL unit definitions (XML exports) into
// a structured intermediate representation. Extraction is a pure function
// of artifact bytes: it performs no I/O and has no side effects, so the
// same bytes always yield a structurally identical ParsedUnit.
package extract

import (
	"encoding/xml"
	"regexp"
	"strings"
)

// xmlUnit mirrors the artifact document shape: a <unit> root with
// zero-or-more <step> children, each carrying attributes and an
// optional embedded <sql> text block.
type xmlUnit struct {
	XMLName xml.Name
	Name    string    `xml:"name,attr"`
	Kind    string    `xml:"kind,attr"`
	Steps   []xmlStep `xml:"step"`
}

type xmlStep struct {
	Name     string `xml:"name,attr"`
	Kind     string `xml:"kind,attr"`
	Source   string `xml:"source,attr"`
	Target   string `xml:"target,attr"`
	Truncate bool   `xml:"truncate,attr"`
	SQL      string `xml:"sql"`
}

// variablePattern matches $$TOKEN$$ placeholders: uppercase tokens
// delimited by double dollar signs, as emitted by the legacy tool.
var variablePattern = regexp.MustCompile(`\$\$([A-Z][A-Z0-9_]*)\$\$`)

// Extract parses artifact bytes into a ParsedUnit.
// The requested kind must match the kind declared in the artifact;
// any structural problem returns an *ExtractionError and no unit.
func Extract(data []byte, kind ArtifactKind) (*ParsedUnit, error) {
	if !kind.Valid() {
		return nil, &ExtractionError{Reason: ReasonUnknownKind, Fragment: string(kind)}
	}

	var doc xmlUnit
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ExtractionError{Reason: ReasonInvalidXML, Fragment: err.Error()}
	}

	if doc.XMLName.Local != "unit" {
		return nil, &ExtractionError{Reason: ReasonWrongRoot, Fragment: doc.XMLName.Local}
	}
	if doc.Name == "" {
		return nil, &ExtractionError{Reason: ReasonMissingName}
	}
	if doc.Kind != "" && doc.Kind != string(kind) {
		return nil, &ExtractionError{Artifact: doc.Name, Reason: ReasonKindMismatch, Fragment: doc.Kind}
	}
	if len(doc.Steps) == 0 {
		return nil, &ExtractionError{Artifact: doc.Name, Reason: ReasonNoSteps}
	}
	if kind == KindStatement {
		if len(doc.Steps) != 1 {
			return nil, &ExtractionError{Artifact: doc.Name, Reason: ReasonStatementMany}
		}
		if strings.TrimSpace(doc.Steps[0].SQL) == "" {
			return nil, &ExtractionError{Artifact: doc.Name, Reason: ReasonStatementSQL}
		}
	}

	unit := &ParsedUnit{
		Name:  doc.Name,
		Kind:  kind,
		Steps: make([]Step, 0, len(doc.Steps)),
	}

	vars := newVarScanner()
	vars.scan(doc.Name)

	for _, xs := range doc.Steps {
		if xs.Name == "" {
			return nil, &ExtractionError{Artifact: doc.Name, Reason: ReasonStepNoName}
		}
		if xs.Kind == "" {
			return nil, &ExtractionError{Artifact: doc.Name, Reason: ReasonStepNoKind, Fragment: xs.Name}
		}

		step := Step{
			Name:     xs.Name,
			Kind:     xs.Kind,
			SQL:      strings.TrimSpace(xs.SQL),
			Reads:    splitRefs(xs.Source),
			Writes:   splitRefs(xs.Target),
			Truncate: xs.Truncate,
		}
		unit.Steps = append(unit.Steps, step)

		// Variables may appear in any text field, including table
		// references; they are collected unresolved.
		vars.scan(xs.SQL)
		vars.scan(xs.Source)
		vars.scan(xs.Target)
	}

	unit.Variables = vars.tokens
	unit.Complexity = complexityFor(len(unit.Steps))

	return unit, nil
}

// splitRefs splits a comma-separated table reference attribute into
// individual references, preserving placeholder tokens verbatim.
func splitRefs(attr string) []string {
	if strings.TrimSpace(attr) == "" {
		return nil
	}
	parts := strings.Split(attr, ",")
	refs := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			refs = append(refs, t)
		}
	}
	return refs
}

// varScanner collects distinct placeholder tokens in first-seen order.
type varScanner struct {
	seen   map[string]struct{}
	tokens []string
}

func newVarScanner() *varScanner {
	return &varScanner{seen: make(map[string]struct{})}
}

func (v *varScanner) scan(text string) {
	for _, m := range variablePattern.FindAllStringSubmatch(text, -1) {
		token := m[1]
		if _, ok := v.seen[token]; ok {
			continue
		}
		v.seen[token] = struct{}{}
		v.tokens = append(v.tokens, token)
	}
}
