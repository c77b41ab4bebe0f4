package translate

// dates.go - Numeric-encoded date columns.
//
// The legacy schema stores some dates as Julian day numbers in plain
// NUMBER columns, with 0 standing in for NULL. The rule rewrites reads
// of such columns into a guarded date expression so downstream models
// see real dates.

import (
	"fmt"
	"strings"
)

// julianEpochOffset is the Julian day number of 1970-01-01.
const julianEpochOffset = 2440588

// DateRules returns the encoded-date rewrite rule.
func DateRules() []Rule {
	return []Rule{
		{Name: "encoded-date", Phase: PhaseFunction, Priority: 50, Apply: applyEncodedDate},
	}
}

// looksLikeDateColumn is the name heuristic. Only columns that both
// look like dates and carry a numeric storage type are rewritten.
func looksLikeDateColumn(col string) bool {
	up := strings.ToUpper(col)
	return strings.Contains(up, "DATE") || strings.HasPrefix(up, "DT_") || strings.HasSuffix(up, "_DT")
}

// numericTypePrefixes mirrors the storage types the rule accepts. The
// declared type must match exactly or continue with a precision spec.
var numericTypePrefixes = []string{
	"NUMBER", "INTEGER", "INT", "SMALLINT", "BIGINT",
	"DECIMAL", "NUMERIC", "FLOAT", "BINARY_FLOAT", "BINARY_DOUBLE",
}

func isNumericType(typ string) bool {
	up := strings.ToUpper(strings.TrimSpace(typ))
	for _, p := range numericTypePrefixes {
		if up == p || strings.HasPrefix(up, p+"(") {
			return true
		}
	}
	return false
}

// applyEncodedDate rewrites select-list reads of numeric date columns:
//
//	CASE WHEN c = 0 THEN NULL ELSE DATE '1970-01-01' + (c - 2440588) END
//
// The zero guard is mandatory: 0 is the legacy NULL sentinel, and a
// bare offset would turn it into a date in 4714 BC. Occurrences in
// predicates are not rewritten, only flagged, because wrapping a
// comparison operand in CASE changes the predicate's meaning.
func applyEncodedDate(rc *ruleContext, sql string) (string, bool) {
	toks := scanSQL(sql)
	s := shapeOf(sql, toks)
	if s == nil {
		return sql, false
	}

	// Alias -> table map for qualified refs; single table name for
	// unqualified ones.
	tables := s.aliasTables()
	single := ""
	if len(tables) == 1 {
		for _, tn := range tables {
			single = tn
		}
	}

	resolve := func(ref string) (string, bool) {
		col := refColumn(ref)
		if !looksLikeDateColumn(col) {
			return "", false
		}
		tbl := refTable(ref)
		switch {
		case tbl != "":
			if tn, ok := tables[strings.ToUpper(tbl)]; ok {
				tbl = tn
			}
		case single != "":
			tbl = single
		default:
			// Unqualified ref with several tables in scope. The
			// catalog can still settle it when only one table
			// declares the column.
			any, can := rc.lookup.(AnyTableLookup)
			if !can {
				return "", false
			}
			typ, ok := any.ColumnTypeAny(col)
			if !ok || !isNumericType(typ) {
				return "", false
			}
			return col, true
		}
		typ, ok := rc.lookup.ColumnType(tbl, col)
		if !ok || !isNumericType(typ) {
			return "", false
		}
		return col, true
	}

	var edits []edit
	noted := make(map[string]struct{})

	for _, c := range s.clauses {
		for i, t := range c.tokens {
			if t.kind != tokIdent || isKeyword(t.text) {
				continue
			}
			if i+1 < len(c.tokens) && c.tokens[i+1].is("(") {
				continue
			}
			col, ok := resolve(t.text)
			if !ok {
				continue
			}

			if c.kind != clauseSelect {
				if _, dup := noted["pred:"+col]; !dup {
					noted["pred:"+col] = struct{}{}
					rc.note("encoded-date", NoteReview,
						fmt.Sprintf("encoded date column %s used in a predicate; left unchanged there", t.text))
				}
				continue
			}

			edits = append(edits, edit{t.start, t.end,
				fmt.Sprintf("CASE WHEN %s = 0 THEN NULL ELSE DATE '1970-01-01' + (%s - %d) END",
					t.text, t.text, julianEpochOffset)})
			if _, dup := noted[col]; !dup {
				noted[col] = struct{}{}
				rc.note("encoded-date", NoteInfo,
					fmt.Sprintf("numeric date column %s decoded from Julian day number", t.text))
				rc.note("encoded-date", NoteReview,
					fmt.Sprintf("negative encoded values in %s would decode to pre-1970 dates; verify source data", t.text))
			}
		}
	}

	if len(edits) == 0 {
		return sql, false
	}
	return applyEdits(sql, edits), true
}
