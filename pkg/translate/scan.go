package translate

// scan.go - Minimal SQL tokenizer used by rewrite rules.
//
// Rules never edit raw strings blindly: they scan the statement into
// position-annotated tokens, decide on spans to replace, and apply the
// edits right-to-left so untouched text (formatting, comments, casing)
// survives translation.

import (
	"sort"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokSymbol
	tokComment
)

// token is a lexeme with its span in the original statement.
// Depth is the parenthesis nesting level at the token's position.
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
	depth int
}

// upper returns the uppercased token text, the form rules match against.
func (t token) upper() string {
	return strings.ToUpper(t.text)
}

// is reports whether the token is an identifier or symbol with the
// given uppercase text.
func (t token) is(s string) bool {
	return t.upper() == s
}

// scanSQL tokenizes a SQL statement. The scanner is deliberately
// permissive: anything it does not understand becomes a symbol token,
// and rules treat unrecognized shapes as not-matching.
func scanSQL(sql string) []token {
	var toks []token
	depth := 0
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		// Whitespace
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		// Line comment
		if c == '-' && i+1 < n && sql[i+1] == '-' {
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = n - i
			}
			toks = append(toks, token{tokComment, sql[i : i+end], i, i + end, depth})
			i += end
			continue
		}

		// Block comment
		if c == '/' && i+1 < n && sql[i+1] == '*' {
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				end = n - i - 2
			}
			stop := i + 2 + end + 2
			if stop > n {
				stop = n
			}
			toks = append(toks, token{tokComment, sql[i:stop], i, stop, depth})
			i = stop
			continue
		}

		// String literal with '' escaping
		if c == '\'' {
			j := i + 1
			for j < n {
				if sql[j] == '\'' {
					if j+1 < n && sql[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			toks = append(toks, token{tokString, sql[i:j], i, j, depth})
			i = j
			continue
		}

		// Quoted identifier
		if c == '"' {
			j := i + 1
			for j < n && sql[j] != '"' {
				j++
			}
			if j < n {
				j++
			}
			toks = append(toks, token{tokIdent, sql[i:j], i, j, depth})
			i = j
			continue
		}

		// Oracle outer-join marker "(+)", possibly with inner spaces
		if c == '(' {
			if end, ok := matchOuterJoinMarker(sql, i); ok {
				toks = append(toks, token{tokSymbol, "(+)", i, end, depth})
				i = end
				continue
			}
		}

		// Number
		if c >= '0' && c <= '9' {
			j := i
			for j < n && (sql[j] >= '0' && sql[j] <= '9' || sql[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, sql[i:j], i, j, depth})
			i = j
			continue
		}

		// Identifier, possibly schema-qualified (a.b.c)
		if isIdentStart(rune(c)) {
			j := i
			for j < n && (isIdentPart(rune(sql[j])) || sql[j] == '.') {
				// A trailing dot not followed by an identifier char ends the token
				if sql[j] == '.' && (j+1 >= n || !isIdentStart(rune(sql[j+1]))) {
					break
				}
				j++
			}
			toks = append(toks, token{tokIdent, sql[i:j], i, j, depth})
			i = j
			continue
		}

		// Multi-char operators
		matched := false
		for _, op := range []string{"<=", ">=", "<>", "!=", "||", ":="} {
			if strings.HasPrefix(sql[i:], op) {
				toks = append(toks, token{tokSymbol, op, i, i + len(op), depth})
				i += len(op)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		// Single-char symbol
		if c == '(' {
			toks = append(toks, token{tokSymbol, "(", i, i + 1, depth})
			depth++
			i++
			continue
		}
		if c == ')' {
			depth--
			toks = append(toks, token{tokSymbol, ")", i, i + 1, depth})
			i++
			continue
		}
		toks = append(toks, token{tokSymbol, string(c), i, i + 1, depth})
		i++
	}

	return toks
}

// matchOuterJoinMarker checks for "(+)" starting at i, allowing
// whitespace between the characters. Returns the end offset.
func matchOuterJoinMarker(sql string, i int) (int, bool) {
	j := i + 1
	n := len(sql)
	skip := func() {
		for j < n && (sql[j] == ' ' || sql[j] == '\t') {
			j++
		}
	}
	skip()
	if j >= n || sql[j] != '+' {
		return 0, false
	}
	j++
	skip()
	if j >= n || sql[j] != ')' {
		return 0, false
	}
	return j + 1, true
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '"'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$' || r == '#'
}

// edit is a pending span replacement.
type edit struct {
	start int
	end   int
	text  string
}

// applyEdits applies non-overlapping edits to the statement,
// right-to-left so earlier offsets stay valid.
func applyEdits(sql string, edits []edit) string {
	if len(edits) == 0 {
		return sql
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	out := sql
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	return out
}

// keywords the scanner's consumers treat as clause or statement
// structure rather than function names.
var sqlKeywords = map[string]struct{}{
	"SELECT": {}, "FROM": {}, "WHERE": {}, "GROUP": {}, "BY": {}, "HAVING": {},
	"ORDER": {}, "UNION": {}, "ALL": {}, "INTERSECT": {}, "MINUS": {}, "EXCEPT": {},
	"AND": {}, "OR": {}, "NOT": {}, "IN": {}, "EXISTS": {}, "BETWEEN": {}, "LIKE": {},
	"IS": {}, "NULL": {}, "AS": {}, "ON": {}, "USING": {}, "JOIN": {}, "INNER": {},
	"LEFT": {}, "RIGHT": {}, "FULL": {}, "OUTER": {}, "CROSS": {}, "CASE": {},
	"WHEN": {}, "THEN": {}, "ELSE": {}, "END": {}, "INSERT": {}, "INTO": {},
	"VALUES": {}, "UPDATE": {}, "SET": {}, "DELETE": {}, "MERGE": {}, "MATCHED": {},
	"DISTINCT": {}, "CONNECT": {}, "START": {}, "WITH": {}, "PRIOR": {}, "LEVEL": {},
	"ROWNUM": {}, "LIMIT": {}, "OFFSET": {}, "OVER": {}, "PARTITION": {}, "ASC": {},
	"DESC": {}, "NULLS": {}, "FIRST": {}, "LAST": {}, "RECURSIVE": {}, "QUALIFY": {},
}

func isKeyword(s string) bool {
	_, ok := sqlKeywords[strings.ToUpper(s)]
	return ok
}
