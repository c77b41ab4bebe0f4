package translate

// shape.go - Minimal parsed statement shape for structural rules.
//
// Structural rewrites (outer joins, comma joins, ROWNUM, CONNECT BY)
// need clause boundaries and FROM-list structure, not a full AST. The
// shape is computed once per rule application from the token stream.

import (
	"strings"
)

// clauseKind identifies a top-level clause of a SELECT statement.
type clauseKind string

const (
	clauseSelect  clauseKind = "SELECT"
	clauseFrom    clauseKind = "FROM"
	clauseWhere   clauseKind = "WHERE"
	clauseGroup   clauseKind = "GROUP"
	clauseHaving  clauseKind = "HAVING"
	clauseOrder   clauseKind = "ORDER"
	clauseConnect clauseKind = "CONNECT"
	clauseStart   clauseKind = "START"
)

// clause is a top-level clause span. start is the offset of the clause
// keyword; bodyStart is the offset just past it (past "BY" for GROUP/
// ORDER, past "WITH" for START).
type clause struct {
	kind      clauseKind
	start     int
	bodyStart int
	end       int
	tokens    []token // tokens of the clause body
}

// stmtShape is the minimal parsed form of one SELECT statement.
type stmtShape struct {
	sql     string
	tokens  []token
	clauses []clause
	// setOp is true when a top-level set operator (UNION, INTERSECT,
	// MINUS, EXCEPT) is present; structural rules skip such statements.
	setOp bool
}

// shapeOf segments a statement into top-level clauses.
// Returns nil for statements without a top-level SELECT (DDL, etc.).
func shapeOf(sql string, toks []token) *stmtShape {
	s := &stmtShape{sql: sql, tokens: toks}

	// Clause keywords begin a clause only at depth 0 and only when not
	// part of a larger construct (GROUP BY / ORDER BY / START WITH /
	// CONNECT BY take their second keyword into the header).
	starts := []struct {
		kw   string
		kind clauseKind
		next string // required following keyword, "" for none
	}{
		{"SELECT", clauseSelect, ""},
		{"FROM", clauseFrom, ""},
		{"WHERE", clauseWhere, ""},
		{"GROUP", clauseGroup, "BY"},
		{"HAVING", clauseHaving, ""},
		{"ORDER", clauseOrder, "BY"},
		{"CONNECT", clauseConnect, "BY"},
		{"START", clauseStart, "WITH"},
	}

	var open *clause
	sawSelect := false
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.depth != 0 || t.kind != tokIdent {
			continue
		}
		u := t.upper()

		if u == "UNION" || u == "INTERSECT" || u == "MINUS" || u == "EXCEPT" {
			s.setOp = true
			continue
		}

		for _, cs := range starts {
			if u != cs.kw {
				continue
			}
			if cs.next != "" {
				if i+1 >= len(toks) || !toks[i+1].is(cs.next) {
					break // e.g. bare START identifier
				}
			}
			if cs.kind == clauseSelect {
				if sawSelect {
					break // subsequent SELECT at depth 0 means a set op branch
				}
				sawSelect = true
			}
			if open != nil {
				open.end = t.start
				s.clauses = append(s.clauses, *open)
			}
			bodyStart := t.end
			if cs.next != "" {
				bodyStart = toks[i+1].end
				i++ // consume the second header keyword
			}
			open = &clause{kind: cs.kind, start: t.start, bodyStart: bodyStart}
			break
		}
	}
	if open != nil {
		open.end = len(sql)
		s.clauses = append(s.clauses, *open)
	}
	if !sawSelect {
		return nil
	}

	// Attach body tokens to each clause.
	for ci := range s.clauses {
		c := &s.clauses[ci]
		for _, t := range toks {
			if t.start >= c.bodyStart && t.end <= c.end {
				c.tokens = append(c.tokens, t)
			}
		}
	}

	return s
}

// find returns the clause of the given kind, or nil.
func (s *stmtShape) find(kind clauseKind) *clause {
	for i := range s.clauses {
		if s.clauses[i].kind == kind {
			return &s.clauses[i]
		}
	}
	return nil
}

// body returns the raw text of the clause body, trimmed.
func (s *stmtShape) body(c *clause) string {
	return strings.TrimSpace(s.sql[c.bodyStart:c.end])
}

// fromItem is one entry of a comma-separated FROM list.
type fromItem struct {
	text  string // raw item text
	name  string // table name as written
	alias string // alias, or the table name when none is declared
	// ansiJoin is true when the item already uses JOIN syntax
	ansiJoin bool
	subquery bool
}

// fromItems splits the FROM clause into comma-separated items and
// extracts table names and aliases.
func (s *stmtShape) fromItems() []fromItem {
	fc := s.find(clauseFrom)
	if fc == nil {
		return nil
	}

	groups := splitTokens(fc.tokens, ",")
	items := make([]fromItem, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		item := fromItem{text: strings.TrimSpace(s.sql[g[0].start:g[len(g)-1].end])}
		minDepth := g[0].depth
		for _, t := range g {
			if t.depth < minDepth {
				minDepth = t.depth
			}
		}
		for _, t := range g {
			if t.kind == tokIdent && t.depth == minDepth && t.is("JOIN") {
				item.ansiJoin = true
			}
		}
		if g[0].kind == tokSymbol && g[0].text == "(" {
			item.subquery = true
		}
		if !item.subquery {
			// First identifier is the table, an optional trailing
			// identifier (skipping AS) is the alias.
			var idents []token
			for _, t := range g {
				if t.kind == tokIdent && !t.is("AS") {
					idents = append(idents, t)
				}
			}
			if len(idents) > 0 {
				item.name = idents[0].text
				item.alias = idents[0].text
			}
			if len(idents) > 1 && !item.ansiJoin {
				item.alias = idents[1].text
			}
		}
		items = append(items, item)
	}
	return items
}

// aliasTables maps each FROM alias (upper-cased) to its table name.
// Unlike fromItems it also understands ANSI JOIN chains, so it works
// on statements the join rules have already rewritten.
func (s *stmtShape) aliasTables() map[string]string {
	fc := s.find(clauseFrom)
	if fc == nil || len(fc.tokens) == 0 {
		return nil
	}

	minDepth := fc.tokens[0].depth
	for _, t := range fc.tokens {
		if t.depth < minDepth {
			minDepth = t.depth
		}
	}

	out := make(map[string]string)
	expectTable := true
	for i := 0; i < len(fc.tokens); i++ {
		t := fc.tokens[i]
		if t.depth != minDepth || t.kind == tokComment {
			continue
		}
		if t.kind == tokSymbol {
			if t.text == "," {
				expectTable = true
			}
			continue
		}
		if t.kind != tokIdent {
			continue
		}
		if t.is("JOIN") {
			expectTable = true
			continue
		}
		if isKeyword(t.text) || !expectTable {
			continue
		}

		table := t.text
		alias := t.text
		j := i + 1
		if j < len(fc.tokens) && fc.tokens[j].kind == tokIdent && fc.tokens[j].is("AS") {
			j++
		}
		if j < len(fc.tokens) && fc.tokens[j].kind == tokIdent &&
			fc.tokens[j].depth == minDepth && !isKeyword(fc.tokens[j].text) {
			alias = fc.tokens[j].text
			i = j
		}
		out[strings.ToUpper(alias)] = table
		expectTable = false
	}
	return out
}

// splitTokens splits a token slice on a top-level symbol (relative to
// the minimum depth within the slice).
func splitTokens(toks []token, sym string) [][]token {
	if len(toks) == 0 {
		return nil
	}
	minDepth := toks[0].depth
	for _, t := range toks {
		if t.depth < minDepth {
			minDepth = t.depth
		}
	}

	var groups [][]token
	var cur []token
	for _, t := range toks {
		if t.depth == minDepth && t.kind == tokSymbol && t.text == sym {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	return groups
}

// splitConjuncts splits a WHERE/ON body into top-level AND conjuncts.
func splitConjuncts(toks []token) [][]token {
	if len(toks) == 0 {
		return nil
	}
	minDepth := toks[0].depth
	for _, t := range toks {
		if t.depth < minDepth {
			minDepth = t.depth
		}
	}

	var groups [][]token
	var cur []token
	for _, t := range toks {
		if t.depth == minDepth && t.kind == tokIdent && t.is("AND") {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	return groups
}

// spanText returns the raw statement text covered by a token slice.
func spanText(sql string, toks []token) string {
	if len(toks) == 0 {
		return ""
	}
	return strings.TrimSpace(sql[toks[0].start:toks[len(toks)-1].end])
}

// refTable returns the qualifier of a column reference ("c.ADDR_ID"
// yields "c"), or "" for unqualified references.
func refTable(ref string) string {
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		return ref[:idx]
	}
	return ""
}

// refColumn returns the last component of a column reference.
func refColumn(ref string) string {
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		return ref[idx+1:]
	}
	return ref
}
