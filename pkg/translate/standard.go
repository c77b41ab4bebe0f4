package translate

// standard.go - The builtin rule set and function allow-list.

// standardAllowList holds functions with identical semantics in both
// dialects. Calls to these pass through without a note; everything
// else is either rewritten by a rule or flagged for review.
var standardAllowList = map[string]struct{}{
	"ABS":          {},
	"AVG":          {},
	"CAST":         {},
	"CEIL":         {},
	"COALESCE":     {},
	"CONCAT":       {},
	"COUNT":        {},
	"DENSE_RANK":   {},
	"EXTRACT":      {},
	"FLOOR":        {},
	"GREATEST":     {},
	"LAG":          {},
	"LEAD":         {},
	"LEAST":        {},
	"LENGTH":       {},
	"LOWER":        {},
	"LPAD":         {},
	"LTRIM":        {},
	"MAX":          {},
	"MIN":          {},
	"MOD":          {},
	"NULLIF":       {},
	"POWER":        {},
	"RANDOM":       {},
	"RANK":         {},
	"REPLACE":      {},
	"ROUND":        {},
	"ROW_NUMBER":   {},
	"RPAD":         {},
	"RTRIM":        {},
	"SIGN":         {},
	"SQRT":         {},
	"STDDEV":       {},
	"STRFTIME":     {},
	"STRPOS":       {},
	"STRPTIME":     {},
	"SUBSTR":       {},
	"SUBSTRING":    {},
	"SUM":          {},
	"TRIM":         {},
	"TRUNC":        {},
	"UPPER":        {},
	"VARIANCE":     {},
	"WIDTH_BUCKET": {},
}

// Oracle returns the builtin rule set for translating Oracle SQL to
// the warehouse dialect: structural rules first, then function and
// column rewrites.
func Oracle() *RuleSet {
	rs := NewRuleSet()
	rs.Add(StructuralRules()...)
	rs.Add(FunctionRules()...)
	rs.Add(DateRules()...)
	return rs
}
