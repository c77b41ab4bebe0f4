package translate

// rules_functions.go - Function-call rewrites.

import (
	"fmt"
	"strings"
)

// functionRenames maps Oracle functions to their target-dialect name
// where only the name differs. Argument order and semantics must be
// identical for a function to appear here.
var functionRenames = map[string]string{
	"NVL":   "COALESCE",
	"INSTR": "STRPOS",
}

// pseudoColumnRenames maps Oracle parenless pseudo-columns to target
// expressions.
var pseudoColumnRenames = map[string]string{
	"SYSDATE":      "CURRENT_TIMESTAMP",
	"SYSTIMESTAMP": "CURRENT_TIMESTAMP",
}

// FunctionRules returns the function-level rewrite rules in their
// canonical priority order.
func FunctionRules() []Rule {
	return []Rule{
		{Name: "rename-functions", Phase: PhaseFunction, Priority: 10, Apply: applyRenames},
		{Name: "decode", Phase: PhaseFunction, Priority: 20, Apply: applyDecode},
		{Name: "nvl2", Phase: PhaseFunction, Priority: 20, Apply: applyNvl2},
		{Name: "date-format", Phase: PhaseFunction, Priority: 30, Apply: applyDateFormat},
		{Name: "package-call", Phase: PhaseFunction, Priority: 40, Apply: applyPackageCalls},
	}
}

// applyRenames rewrites direct function-name renames and parenless
// pseudo-columns.
func applyRenames(rc *ruleContext, sql string) (string, bool) {
	toks := scanSQL(sql)
	var edits []edit
	noted := make(map[string]struct{})

	for i, t := range toks {
		if t.kind != tokIdent || strings.Contains(t.text, ".") {
			continue
		}
		up := t.upper()

		if i+1 < len(toks) && toks[i+1].kind == tokSymbol && toks[i+1].text == "(" {
			to, ok := rc.renames[up]
			if !ok {
				continue
			}
			edits = append(edits, edit{t.start, t.end, to})
			if _, dup := noted[up]; !dup {
				noted[up] = struct{}{}
				rc.note("rename-functions", NoteInfo, fmt.Sprintf("%s rewritten as %s", up, to))
			}
			continue
		}

		if to, ok := pseudoColumnRenames[up]; ok && !isKeyword(up) {
			edits = append(edits, edit{t.start, t.end, to})
			if _, dup := noted[up]; !dup {
				noted[up] = struct{}{}
				rc.note("rename-functions", NoteInfo, fmt.Sprintf("%s rewritten as %s", up, to))
			}
		}
	}

	if len(edits) == 0 {
		return sql, false
	}
	return applyEdits(sql, edits), true
}

// call locates one function call: the name token, the argument spans,
// and the overall start/end offsets.
type call struct {
	name  token
	args  [][]token
	start int
	end   int
}

// findCalls returns every call to name (outermost first) in the token
// stream. Nested calls to the same function are excluded; callers that
// rewrite arguments textually loop until no calls remain.
func findCalls(toks []token, name string) []call {
	var calls []call
	for i := 0; i < len(toks)-1; i++ {
		t := toks[i]
		if t.kind != tokIdent || !t.is(name) {
			continue
		}
		open := toks[i+1]
		if open.kind != tokSymbol || open.text != "(" {
			continue
		}

		// Find the matching close paren: same depth as the open.
		closeIdx := -1
		for j := i + 2; j < len(toks); j++ {
			if toks[j].kind == tokSymbol && toks[j].text == ")" && toks[j].depth == open.depth {
				closeIdx = j
				break
			}
		}
		if closeIdx < 0 {
			continue
		}

		inner := toks[i+2 : closeIdx]
		var args [][]token
		if len(inner) > 0 {
			args = splitTokens(inner, ",")
		}
		calls = append(calls, call{name: t, args: args, start: t.start, end: toks[closeIdx].end})

		// Skip past this call so nested same-name calls wait for the
		// next pass.
		i = closeIdx
	}
	return calls
}

// maxRewritePasses bounds the rewrite loop for nested same-name calls.
const maxRewritePasses = 16

// applyDecode rewrites DECODE into a CASE expression. A NULL search
// value compares with IS NULL, matching Oracle's NULL-equality rule
// for DECODE.
func applyDecode(rc *ruleContext, sql string) (string, bool) {
	matched := false
	for pass := 0; pass < maxRewritePasses; pass++ {
		toks := scanSQL(sql)
		calls := findCalls(toks, "DECODE")
		if len(calls) == 0 {
			break
		}

		var edits []edit
		for _, c := range calls {
			if len(c.args) < 3 {
				rc.note("decode", NoteAmbiguous, "DECODE with fewer than three arguments; left unchanged")
				continue
			}

			expr := spanText(sql, c.args[0])
			var b strings.Builder
			b.WriteString("CASE")
			rest := c.args[1:]
			for len(rest) >= 2 {
				search := spanText(sql, rest[0])
				result := spanText(sql, rest[1])
				if strings.EqualFold(search, "NULL") {
					fmt.Fprintf(&b, " WHEN %s IS NULL THEN %s", expr, result)
				} else {
					fmt.Fprintf(&b, " WHEN %s = %s THEN %s", expr, search, result)
				}
				rest = rest[2:]
			}
			if len(rest) == 1 {
				fmt.Fprintf(&b, " ELSE %s", spanText(sql, rest[0]))
			}
			b.WriteString(" END")

			edits = append(edits, edit{c.start, c.end, b.String()})
		}
		if len(edits) == 0 {
			break
		}
		sql = applyEdits(sql, edits)
		if !matched {
			rc.note("decode", NoteInfo, "DECODE rewritten as CASE expression")
			matched = true
		}
	}
	return sql, matched
}

// applyNvl2 rewrites NVL2(x, a, b) as a CASE on x IS NOT NULL.
func applyNvl2(rc *ruleContext, sql string) (string, bool) {
	matched := false
	for pass := 0; pass < maxRewritePasses; pass++ {
		toks := scanSQL(sql)
		calls := findCalls(toks, "NVL2")
		if len(calls) == 0 {
			break
		}

		var edits []edit
		for _, c := range calls {
			if len(c.args) != 3 {
				rc.note("nvl2", NoteAmbiguous, "NVL2 without exactly three arguments; left unchanged")
				continue
			}
			text := fmt.Sprintf("CASE WHEN %s IS NOT NULL THEN %s ELSE %s END",
				spanText(sql, c.args[0]), spanText(sql, c.args[1]), spanText(sql, c.args[2]))
			edits = append(edits, edit{c.start, c.end, text})
		}
		if len(edits) == 0 {
			break
		}
		sql = applyEdits(sql, edits)
		if !matched {
			rc.note("nvl2", NoteInfo, "NVL2 rewritten as CASE expression")
			matched = true
		}
	}
	return sql, matched
}

// dateFormatTokens maps Oracle datetime format elements to strftime
// directives, longest element first so the mapper can scan greedily.
var dateFormatTokens = []struct {
	ora string
	out string
}{
	{"MONTH", "%B"},
	{"HH24", "%H"},
	{"HH12", "%I"},
	{"YYYY", "%Y"},
	{"MON", "%b"},
	{"DAY", "%A"},
	{"HH", "%I"},
	{"MI", "%M"},
	{"SS", "%S"},
	{"DD", "%d"},
	{"DY", "%a"},
	{"MM", "%m"},
	{"YY", "%y"},
}

// mapDateFormat converts an Oracle format literal (including quotes)
// to a strftime format literal. Returns false when the format contains
// an element with no strftime equivalent.
func mapDateFormat(lit string) (string, bool) {
	if len(lit) < 2 || lit[0] != '\'' {
		return "", false
	}
	body := lit[1 : len(lit)-1]

	var b strings.Builder
	b.WriteByte('\'')
	for len(body) > 0 {
		c := body[0]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			b.WriteByte(c)
			body = body[1:]
			continue
		}
		mapped := false
		for _, ft := range dateFormatTokens {
			if len(body) >= len(ft.ora) && strings.EqualFold(body[:len(ft.ora)], ft.ora) {
				b.WriteString(ft.out)
				body = body[len(ft.ora):]
				mapped = true
				break
			}
		}
		if !mapped {
			return "", false
		}
	}
	b.WriteByte('\'')
	return b.String(), true
}

// applyDateFormat rewrites TO_DATE and TO_CHAR with literal format
// strings. TO_DATE(x, f) becomes strptime(x, f'); TO_CHAR(x, f)
// becomes strftime(f', x); bare TO_CHAR(x) becomes a VARCHAR cast.
func applyDateFormat(rc *ruleContext, sql string) (string, bool) {
	toks := scanSQL(sql)
	var edits []edit

	for _, c := range findCalls(toks, "TO_DATE") {
		if len(c.args) != 2 || len(c.args[1]) != 1 || c.args[1][0].kind != tokString {
			rc.note("date-format", NoteReview, "TO_DATE without a literal format string; passed through unchanged")
			continue
		}
		fmtLit, ok := mapDateFormat(c.args[1][0].text)
		if !ok {
			rc.note("date-format", NoteReview,
				fmt.Sprintf("TO_DATE format %s has elements with no strptime equivalent; passed through unchanged", c.args[1][0].text))
			continue
		}
		edits = append(edits, edit{c.start, c.end,
			fmt.Sprintf("strptime(%s, %s)", spanText(sql, c.args[0]), fmtLit)})
		rc.note("date-format", NoteInfo, "TO_DATE rewritten as strptime")
	}

	for _, c := range findCalls(toks, "TO_CHAR") {
		if len(c.args) == 1 {
			edits = append(edits, edit{c.start, c.end,
				fmt.Sprintf("CAST(%s AS VARCHAR)", spanText(sql, c.args[0]))})
			rc.note("date-format", NoteInfo, "single-argument TO_CHAR rewritten as VARCHAR cast")
			continue
		}
		if len(c.args) != 2 || len(c.args[1]) != 1 || c.args[1][0].kind != tokString {
			rc.note("date-format", NoteReview, "TO_CHAR without a literal format string; passed through unchanged")
			continue
		}
		fmtLit, ok := mapDateFormat(c.args[1][0].text)
		if !ok {
			rc.note("date-format", NoteReview,
				fmt.Sprintf("TO_CHAR format %s has elements with no strftime equivalent; passed through unchanged", c.args[1][0].text))
			continue
		}
		edits = append(edits, edit{c.start, c.end,
			fmt.Sprintf("strftime(%s, %s)", fmtLit, spanText(sql, c.args[0]))})
		rc.note("date-format", NoteInfo, "TO_CHAR rewritten as strftime")
	}

	if len(edits) == 0 {
		return sql, false
	}
	return applyEdits(sql, edits), true
}

// oraclePackagePrefixes identify built-in PL/SQL package calls.
var oraclePackagePrefixes = []string{"DBMS_", "UTL_", "CTX_", "APEX_", "OWA_", "HTP"}

// applyPackageCalls handles package-qualified calls. DBMS_RANDOM.VALUE
// with no arguments has a direct equivalent; every other package call
// has no warehouse counterpart and is surfaced for review.
func applyPackageCalls(rc *ruleContext, sql string) (string, bool) {
	toks := scanSQL(sql)
	var edits []edit
	noted := make(map[string]struct{})

	for i, t := range toks {
		if t.kind != tokIdent {
			continue
		}
		pkg := strings.ToUpper(refTable(t.text))
		if pkg == "" || !isOraclePackage(pkg) {
			continue
		}

		up := t.upper()
		if up == "DBMS_RANDOM.VALUE" {
			end := t.end
			ranged := false
			// Consume an empty argument list when present. The ranged
			// VALUE(low, high) form has no direct equivalent.
			if i+1 < len(toks) && toks[i+1].is("(") {
				if i+2 < len(toks) && toks[i+2].is(")") {
					end = toks[i+2].end
				} else {
					ranged = true
				}
			}
			if !ranged {
				edits = append(edits, edit{t.start, end, "RANDOM()"})
				rc.note("package-call", NoteInfo, "DBMS_RANDOM.VALUE rewritten as RANDOM()")
				continue
			}
		}

		if _, dup := noted[up]; !dup {
			noted[up] = struct{}{}
			rc.note("package-call", NoteReview,
				fmt.Sprintf("PL/SQL package call %s has no warehouse equivalent; passed through unchanged", t.text))
		}
	}

	if len(edits) == 0 {
		return sql, false
	}
	return applyEdits(sql, edits), true
}

func isOraclePackage(name string) bool {
	for _, p := range oraclePackagePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
