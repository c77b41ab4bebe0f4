package translate

// rules_structural.go - Statement-shape rewrites.
//
// These rules run before function-level rewrites because the function
// rules assume ANSI-shaped statements (explicit joins, no ROWNUM
// pseudo-column, no CONNECT BY).

import (
	"fmt"
	"strconv"
	"strings"
)

// StructuralRules returns the structural rewrite rules in their
// canonical priority order.
func StructuralRules() []Rule {
	return []Rule{
		{Name: "connect-by", Phase: PhaseStructural, Priority: 10, Apply: applyConnectBy},
		{Name: "outer-join", Phase: PhaseStructural, Priority: 20, Apply: applyOuterJoin},
		{Name: "comma-join", Phase: PhaseStructural, Priority: 30, Apply: applyCommaJoin},
		{Name: "rownum", Phase: PhaseStructural, Priority: 40, Apply: applyRownum},
	}
}

// ---------- CONNECT BY ----------

// applyConnectBy rewrites a hierarchical query into a recursive CTE.
//
//	SELECT c FROM t START WITH p IS NULL CONNECT BY PRIOR id = parent_id
//
// becomes
//
//	WITH RECURSIVE hierarchy AS (
//	  SELECT c FROM t WHERE p IS NULL
//	  UNION ALL
//	  SELECT t.c FROM t JOIN hierarchy ON t.parent_id = hierarchy.id
//	)
//	SELECT * FROM hierarchy
func applyConnectBy(rc *ruleContext, sql string) (string, bool) {
	toks := scanSQL(sql)
	s := shapeOf(sql, toks)
	if s == nil {
		return sql, false
	}
	cb := s.find(clauseConnect)
	if cb == nil {
		return sql, false
	}

	const rule = "connect-by"

	if s.setOp {
		rc.note(rule, NoteAmbiguous, "CONNECT BY combined with a set operation; left unchanged")
		return sql, false
	}

	items := s.fromItems()
	if len(items) != 1 || items[0].subquery || items[0].ansiJoin {
		rc.note(rule, NoteAmbiguous, "CONNECT BY over a multi-table or derived FROM clause; left unchanged")
		return sql, false
	}
	table := items[0]

	// LEVEL has no direct equivalent without threading a depth column
	// through the CTE; surfaced for review instead of guessed at.
	for _, t := range toks {
		if t.kind == tokIdent && t.is("LEVEL") {
			rc.note(rule, NoteAmbiguous, "LEVEL pseudo-column in hierarchical query; left unchanged")
			return sql, false
		}
	}

	sw := s.find(clauseStart)
	if sw == nil {
		rc.note(rule, NoteAmbiguous, "CONNECT BY without START WITH seeds every row; left unchanged")
		return sql, false
	}

	joinCond, ok := connectCondition(rc, s, cb, table.alias)
	if !ok {
		return sql, false
	}

	sel := s.find(clauseSelect)
	selList, ok := qualifiedSelectList(s, sel, table.alias)
	if !ok {
		rc.note(rule, NoteAmbiguous, "hierarchical select list is not a plain column list; left unchanged")
		return sql, false
	}

	var b strings.Builder
	b.WriteString("WITH RECURSIVE hierarchy AS (\n")
	fmt.Fprintf(&b, "  SELECT %s FROM %s WHERE %s\n", selList, table.text, s.body(sw))
	b.WriteString("  UNION ALL\n")
	fmt.Fprintf(&b, "  SELECT %s FROM %s JOIN hierarchy ON %s\n", selList, table.text, joinCond)
	b.WriteString(")\nSELECT * FROM hierarchy")

	if wc := s.find(clauseWhere); wc != nil {
		fmt.Fprintf(&b, "\nWHERE %s", s.body(wc))
	}
	if gc := s.find(clauseGroup); gc != nil {
		fmt.Fprintf(&b, "\nGROUP BY %s", s.body(gc))
	}
	if oc := s.find(clauseOrder); oc != nil {
		fmt.Fprintf(&b, "\nORDER BY %s", s.body(oc))
	}

	rc.note(rule, NoteInfo, "hierarchical CONNECT BY rewritten as recursive CTE")
	return b.String(), true
}

// connectCondition parses the CONNECT BY body into the recursive join
// condition. PRIOR marks the parent side: `PRIOR a = b` means a child
// row's b matches its parent's a.
func connectCondition(rc *ruleContext, s *stmtShape, cb *clause, alias string) (string, bool) {
	const rule = "connect-by"

	var joins []string
	var filters []string
	for _, conj := range splitConjuncts(cb.tokens) {
		// Strip the NOCYCLE modifier; recursive CTEs do not loop the
		// same way, but the removal is worth a review.
		if len(conj) > 0 && conj[0].is("NOCYCLE") {
			rc.note(rule, NoteReview, "NOCYCLE modifier dropped in recursive CTE rewrite")
			conj = conj[1:]
		}

		priorIdx := -1
		for i, t := range conj {
			if t.kind == tokIdent && t.is("PRIOR") {
				if priorIdx >= 0 {
					rc.note(rule, NoteAmbiguous, "multiple PRIOR markers in one condition; left unchanged")
					return "", false
				}
				priorIdx = i
			}
		}
		if priorIdx < 0 {
			// Condition without PRIOR filters child rows.
			filters = append(filters, spanText(s.sql, conj))
			continue
		}

		eqIdx := -1
		for i, t := range conj {
			if t.kind == tokSymbol && t.text == "=" {
				eqIdx = i
				break
			}
		}
		// Only the canonical `[PRIOR] col = [PRIOR] col` shape is
		// rewritten; anything else is surfaced for review.
		if eqIdx < 0 || len(conj) != 4 {
			rc.note(rule, NoteAmbiguous, "unsupported CONNECT BY condition shape; left unchanged")
			return "", false
		}

		var parentCol, childCol string
		if priorIdx == 0 && eqIdx == 2 && conj[1].kind == tokIdent && conj[3].kind == tokIdent {
			parentCol = refColumn(conj[1].text)
			childCol = refColumn(conj[3].text)
		} else if priorIdx == 2 && eqIdx == 1 && conj[0].kind == tokIdent && conj[3].kind == tokIdent {
			parentCol = refColumn(conj[3].text)
			childCol = refColumn(conj[0].text)
		} else {
			rc.note(rule, NoteAmbiguous, "unsupported CONNECT BY condition shape; left unchanged")
			return "", false
		}

		joins = append(joins, fmt.Sprintf("%s.%s = hierarchy.%s", alias, childCol, parentCol))
	}

	if len(joins) == 0 {
		rc.note(rule, NoteAmbiguous, "CONNECT BY has no PRIOR condition; left unchanged")
		return "", false
	}
	return strings.Join(append(joins, filters...), " AND "), true
}

// qualifiedSelectList rewrites a select list so every column reference
// is table-qualified, making it safe inside the recursive member where
// the CTE's own columns are also in scope. Returns false when the list
// contains anything other than plain column references or `*`.
func qualifiedSelectList(s *stmtShape, sel *clause, alias string) (string, bool) {
	if sel == nil {
		return "", false
	}
	if body := s.body(sel); body == "*" {
		return alias + ".*", true
	}

	var parts []string
	for _, item := range splitTokens(sel.tokens, ",") {
		// Accept `col`, `tbl.col`, optionally followed by [AS] alias.
		var idents []token
		for _, t := range item {
			if t.kind == tokComment {
				continue
			}
			if t.kind != tokIdent || isKeyword(t.text) && !t.is("AS") {
				return "", false
			}
			if !t.is("AS") {
				idents = append(idents, t)
			}
		}
		if len(idents) == 0 || len(idents) > 2 {
			return "", false
		}

		ref := idents[0].text
		if refTable(ref) == "" {
			ref = alias + "." + ref
		}
		if len(idents) == 2 {
			ref += " AS " + idents[1].text
		}
		parts = append(parts, ref)
	}
	return strings.Join(parts, ", "), true
}

// ---------- Oracle (+) outer joins ----------

// joinLink records how one FROM item joins to the tables before it.
type joinLink struct {
	optional bool     // true for LEFT JOIN (the (+)-marked side)
	anchors  []string // alias names this condition references besides the item
	conds    []string // ON conditions, (+) markers stripped
}

// applyOuterJoin converts Oracle's comma-join plus (+) marker syntax
// into explicit ANSI joins. The (+)-marked side is the null-supplying
// side, so `a.c = b.c(+)` becomes `a LEFT JOIN b ON a.c = b.c`.
func applyOuterJoin(rc *ruleContext, sql string) (string, bool) {
	toks := scanSQL(sql)
	hasMarker := false
	for _, t := range toks {
		if t.kind == tokSymbol && t.text == "(+)" {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		return sql, false
	}

	const rule = "outer-join"

	s := shapeOf(sql, toks)
	if s == nil || s.setOp {
		rc.note(rule, NoteAmbiguous, "outer-join marker in a statement shape the converter does not handle; left unchanged")
		return sql, false
	}
	fc := s.find(clauseFrom)
	wc := s.find(clauseWhere)
	if fc == nil || wc == nil {
		rc.note(rule, NoteAmbiguous, "outer-join marker without a plain FROM/WHERE pair; left unchanged")
		return sql, false
	}

	items := s.fromItems()
	aliases := make(map[string]int, len(items)) // alias -> item index
	for i, it := range items {
		if it.subquery || it.ansiJoin {
			rc.note(rule, NoteAmbiguous, "outer-join marker mixed with derived tables or ANSI joins; left unchanged")
			return sql, false
		}
		aliases[strings.ToUpper(it.alias)] = i
	}

	links := make([]joinLink, len(items))
	var residual []string

	for _, conj := range splitConjuncts(wc.tokens) {
		text, marked, refs := analyzeConjunct(s.sql, conj, aliases)
		switch {
		case len(marked) > 1:
			rc.note(rule, NoteAmbiguous, "(+) on both sides of one predicate; left unchanged")
			return sql, false
		case len(marked) == 1:
			idx := marked[0]
			links[idx].optional = true
			links[idx].conds = append(links[idx].conds, text)
			for _, r := range refs {
				if r != idx {
					links[idx].anchors = append(links[idx].anchors, strings.ToUpper(items[r].alias))
				}
			}
		case len(refs) == 2:
			// Plain equality between two tables: an inner-join link.
			// It attaches to the later FROM item regardless of which
			// side of the predicate names it, so the earlier item can
			// anchor the chain.
			lo, hi := refs[0], refs[1]
			if lo > hi {
				lo, hi = hi, lo
			}
			links[hi].conds = append(links[hi].conds, text)
			links[hi].anchors = append(links[hi].anchors, strings.ToUpper(items[lo].alias))
		default:
			residual = append(residual, text)
		}
	}

	from, ok := assembleJoins(rc, rule, items, links)
	if !ok {
		return sql, false
	}

	var repl strings.Builder
	repl.WriteString("FROM ")
	repl.WriteString(from)
	if len(residual) > 0 {
		repl.WriteString("\nWHERE ")
		repl.WriteString(strings.Join(residual, "\n  AND "))
	}
	if wc.end < len(sql) {
		// A trailing clause (GROUP BY, ORDER BY) follows.
		repl.WriteString("\n")
	}

	out := applyEdits(sql, []edit{{start: fc.start, end: wc.end, text: repl.String()}})
	rc.note(rule, NoteInfo, "implicit (+) outer joins rewritten as explicit ANSI joins")
	return out, true
}

// analyzeConjunct strips (+) markers from one conjunct and reports
// which FROM items it references and which of them were (+)-marked.
func analyzeConjunct(sql string, conj []token, aliases map[string]int) (text string, marked, refs []int) {
	var b strings.Builder
	seenRef := make(map[int]struct{})
	lastRef := -1

	for _, t := range conj {
		if t.kind == tokSymbol && t.text == "(+)" {
			if lastRef >= 0 {
				marked = appendUniqueInt(marked, lastRef)
			}
			continue
		}
		if t.kind == tokIdent && !isKeyword(t.text) {
			// Unqualified refs stay unattributed; with more than one
			// table in scope they cannot be placed reliably.
			if idx, ok := aliases[strings.ToUpper(refTable(t.text))]; ok {
				lastRef = idx
				if _, dup := seenRef[idx]; !dup {
					seenRef[idx] = struct{}{}
					refs = append(refs, idx)
				}
			}
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(t.text)
	}
	return b.String(), marked, refs
}

func appendUniqueInt(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// assembleJoins orders FROM items into an explicit join chain. Items
// are placed in declaration order once every table their ON condition
// references is already in the chain; anything left over becomes a
// CROSS JOIN.
func assembleJoins(rc *ruleContext, rule string, items []fromItem, links []joinLink) (string, bool) {
	placed := make(map[string]bool, len(items))
	done := make([]bool, len(items))

	// The chain starts at the first item that is never null-supplying.
	start := -1
	for i := range items {
		if !links[i].optional {
			start = i
			break
		}
	}
	if start < 0 {
		rc.note(rule, NoteAmbiguous, "every table carries a (+) marker; left unchanged")
		return "", false
	}

	if len(links[start].conds) > 0 {
		// The chain start has no JOIN of its own to carry an ON
		// clause; emitting the chain would drop its conditions.
		rc.note(rule, NoteAmbiguous, "join condition attaches to the leading table; left unchanged")
		return "", false
	}

	var b strings.Builder
	b.WriteString(items[start].text)
	placed[strings.ToUpper(items[start].alias)] = true
	done[start] = true

	for {
		progress := false
		for i, it := range items {
			if done[i] {
				continue
			}
			l := links[i]
			if len(l.conds) == 0 {
				continue
			}
			ready := true
			for _, a := range l.anchors {
				if !placed[a] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			kw := "JOIN"
			if l.optional {
				kw = "LEFT JOIN"
			}
			fmt.Fprintf(&b, "\n  %s %s ON %s", kw, it.text, strings.Join(l.conds, " AND "))
			placed[strings.ToUpper(it.alias)] = true
			done[i] = true
			progress = true
		}
		if progress {
			continue
		}

		// No join is ready; cross-join a condition-free item so it
		// can anchor later joins.
		crossed := false
		for i, it := range items {
			if done[i] || len(links[i].conds) > 0 {
				continue
			}
			fmt.Fprintf(&b, "\n  CROSS JOIN %s", it.text)
			rc.note(rule, NoteReview, fmt.Sprintf("table %s has no join condition; preserved as CROSS JOIN", it.alias))
			placed[strings.ToUpper(it.alias)] = true
			done[i] = true
			crossed = true
			break
		}
		if !crossed {
			break
		}
	}

	for i := range items {
		if !done[i] {
			// Conditions left on an unplaceable item would be lost.
			rc.note(rule, NoteAmbiguous, "join conditions do not form a resolvable chain; left unchanged")
			return "", false
		}
	}

	return b.String(), true
}

// ---------- Comma joins without (+) ----------

// applyCommaJoin converts remaining multi-table comma joins to ANSI
// joins. Equality predicates linking two tables become INNER JOIN ON;
// unlinked tables are preserved as CROSS JOIN.
func applyCommaJoin(rc *ruleContext, sql string) (string, bool) {
	toks := scanSQL(sql)
	s := shapeOf(sql, toks)
	if s == nil || s.setOp {
		return sql, false
	}
	fc := s.find(clauseFrom)
	if fc == nil {
		return sql, false
	}

	items := s.fromItems()
	if len(items) < 2 {
		return sql, false
	}

	const rule = "comma-join"

	aliases := make(map[string]int, len(items))
	for i, it := range items {
		if it.subquery || it.ansiJoin {
			rc.note(rule, NoteAmbiguous, "comma join mixed with derived tables or ANSI joins; left unchanged")
			return sql, false
		}
		aliases[strings.ToUpper(it.alias)] = i
	}

	links := make([]joinLink, len(items))
	var residual []string
	end := fc.end

	if wc := s.find(clauseWhere); wc != nil {
		end = wc.end
		for _, conj := range splitConjuncts(wc.tokens) {
			text, marked, refs := analyzeConjunct(s.sql, conj, aliases)
			if len(marked) > 0 {
				// (+) handling belongs to the outer-join rule.
				return sql, false
			}
			if len(refs) == 2 {
				// Attach to the later FROM item, as in the outer-join
				// rule, so consumer-first predicates still land on a
				// joinable table.
				lo, hi := refs[0], refs[1]
				if lo > hi {
					lo, hi = hi, lo
				}
				links[hi].conds = append(links[hi].conds, text)
				links[hi].anchors = append(links[hi].anchors, strings.ToUpper(items[lo].alias))
			} else {
				residual = append(residual, text)
			}
		}
	}

	from, ok := assembleJoins(rc, rule, items, links)
	if !ok {
		return sql, false
	}

	var repl strings.Builder
	repl.WriteString("FROM ")
	repl.WriteString(from)
	if len(residual) > 0 {
		repl.WriteString("\nWHERE ")
		repl.WriteString(strings.Join(residual, "\n  AND "))
	}
	if end < len(sql) {
		repl.WriteString("\n")
	}

	out := applyEdits(sql, []edit{{start: fc.start, end: end, text: repl.String()}})
	rc.note(rule, NoteInfo, "multi-table comma join rewritten as explicit ANSI joins")
	return out, true
}

// ---------- ROWNUM ----------

// applyRownum rewrites the ROWNUM pseudo-column. A WHERE bound becomes
// LIMIT; a select-list ROWNUM becomes ROW_NUMBER() OVER (). Any other
// usage is surfaced for review rather than guessed at.
func applyRownum(rc *ruleContext, sql string) (string, bool) {
	toks := scanSQL(sql)
	hasRownum := false
	for _, t := range toks {
		if t.kind == tokIdent && t.is("ROWNUM") {
			hasRownum = true
			break
		}
	}
	if !hasRownum {
		return sql, false
	}

	const rule = "rownum"

	s := shapeOf(sql, toks)
	if s == nil || s.setOp {
		rc.note(rule, NoteAmbiguous, "ROWNUM in a statement shape the converter does not handle; left unchanged")
		return sql, false
	}

	var edits []edit
	limit := ""

	// Select-list ROWNUM becomes a window function.
	if sel := s.find(clauseSelect); sel != nil {
		for _, t := range sel.tokens {
			if t.kind == tokIdent && t.is("ROWNUM") {
				edits = append(edits, edit{t.start, t.end, "ROW_NUMBER() OVER ()"})
				rc.note(rule, NoteInfo, "select-list ROWNUM rewritten as ROW_NUMBER() OVER ()")
			}
		}
	}

	if wc := s.find(clauseWhere); wc != nil {
		var kept []string
		changed := false
		for _, conj := range splitConjuncts(wc.tokens) {
			n, ok := rownumBound(conj)
			if !ok {
				// ROWNUM anywhere else in the predicate is ambiguous.
				for _, t := range conj {
					if t.kind == tokIdent && t.is("ROWNUM") {
						rc.note(rule, NoteAmbiguous, fmt.Sprintf("unsupported ROWNUM predicate %q; left unchanged", spanText(s.sql, conj)))
						return sql, false
					}
				}
				kept = append(kept, spanText(s.sql, conj))
				continue
			}
			limit = n
			changed = true
		}
		if changed {
			if len(kept) == 0 {
				edits = append(edits, edit{wc.start, wc.end, ""})
			} else {
				edits = append(edits, edit{wc.bodyStart, wc.end, " " + strings.Join(kept, " AND ") + " "})
			}
			if s.find(clauseOrder) != nil {
				rc.note(rule, NoteReview, "ROWNUM bound rewritten as LIMIT "+limit+"; Oracle numbers rows before ORDER BY, so the limited set may differ")
			} else {
				rc.note(rule, NoteInfo, "ROWNUM bound rewritten as LIMIT "+limit)
			}
		}
	}

	if len(edits) == 0 {
		rc.note(rule, NoteAmbiguous, "ROWNUM usage the converter does not handle; left unchanged")
		return sql, false
	}

	out := strings.TrimRight(applyEdits(sql, edits), " \t\n;")
	if limit != "" {
		out += "\nLIMIT " + limit
	}
	return out, true
}

// rownumBound recognizes `ROWNUM <= n`, `ROWNUM < n`, `ROWNUM = 1` and
// their mirrored forms, returning the equivalent LIMIT value.
func rownumBound(conj []token) (string, bool) {
	var flt []token
	for _, t := range conj {
		if t.kind != tokComment {
			flt = append(flt, t)
		}
	}
	if len(flt) != 3 {
		return "", false
	}

	a, op, b := flt[0], flt[1], flt[2]
	if op.kind != tokSymbol {
		return "", false
	}

	// Normalize to ROWNUM-on-the-left.
	if b.kind == tokIdent && b.is("ROWNUM") {
		a, b = b, a
		switch op.text {
		case "<":
			op.text = ">"
		case "<=":
			op.text = ">="
		case ">":
			op.text = "<"
		case ">=":
			op.text = "<="
		}
	}
	if !(a.kind == tokIdent && a.is("ROWNUM")) || b.kind != tokNumber {
		return "", false
	}

	switch op.text {
	case "<=":
		return b.text, true
	case "<":
		n, err := strconv.Atoi(b.text)
		if err != nil || n < 1 {
			return "", false
		}
		return strconv.Itoa(n - 1), true
	case "=":
		if b.text == "1" {
			return "1", true
		}
	}
	return "", false
}
