package translate

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// typeMap is a test TypeLookup backed by a map keyed TABLE.COLUMN.
type typeMap map[string]string

func (m typeMap) ColumnType(table, column string) (string, bool) {
	t, ok := m[strings.ToUpper(table)+"."+strings.ToUpper(column)]
	return t, ok
}

// anyTypeMap extends typeMap with an unattributed column search keyed
// by column name alone.
type anyTypeMap struct {
	typeMap
	any map[string]string
}

func (m anyTypeMap) ColumnTypeAny(column string) (string, bool) {
	t, ok := m.any[strings.ToUpper(column)]
	return t, ok
}

func newTranslator(t *testing.T, lookup TypeLookup) *Translator {
	t.Helper()
	return New(Oracle(), lookup)
}

func TestRownumBoundBecomesLimit(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT * FROM t WHERE ROWNUM <= 10")

	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Contains(t, res.SQL, "LIMIT 10")
	assert.NotContains(t, strings.ToUpper(res.SQL), "ROWNUM")
	assert.NotContains(t, strings.ToUpper(res.SQL), "WHERE")
}

func TestRownumBoundKeepsOtherPredicates(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT id FROM t WHERE status = 'A' AND ROWNUM < 100")

	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Contains(t, res.SQL, "LIMIT 99")
	assert.Contains(t, res.SQL, "status = 'A'")
}

func TestRownumBoundWithOrderByNeedsReview(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT id FROM t WHERE ROWNUM <= 10 ORDER BY id")

	assert.Equal(t, "SELECT id FROM t ORDER BY id\nLIMIT 10", res.SQL)
	assert.Equal(t, ConfidenceMedium, res.Confidence)
	var reviews int
	for _, n := range res.Notes {
		if n.Level == NoteReview {
			reviews++
			assert.Contains(t, n.Message, "before ORDER BY")
		}
	}
	assert.Equal(t, 1, reviews)
}

func TestRownumInSelectListBecomesRowNumber(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT ROWNUM AS rn, id FROM t")

	assert.Contains(t, res.SQL, "ROW_NUMBER() OVER ()")
}

func TestRownumUnsupportedShapeIsFlagged(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT id FROM t WHERE ROWNUM > 5")

	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Contains(t, res.SQL, "ROWNUM > 5")
}

func TestOuterJoinMarkerBecomesLeftJoin(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate(
		"SELECT c.id, o.total FROM customer c, orders o WHERE c.id = o.customer_id(+)")

	require.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Contains(t, res.SQL, "LEFT JOIN orders o ON c.id = o.customer_id")
	assert.NotContains(t, res.SQL, "(+)")
}

func TestOuterJoinMarkerWithFilter(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate(
		"SELECT c.id FROM customer c, orders o " +
			"WHERE c.id = o.customer_id(+) AND o.status(+) = 'OPEN' AND c.region = 'EU'")

	require.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Contains(t, res.SQL, "LEFT JOIN orders o ON c.id = o.customer_id AND o.status = 'OPEN'")
	assert.Contains(t, res.SQL, "WHERE c.region = 'EU'")
}

func TestOuterJoinBothSidesMarkedIsAmbiguous(t *testing.T) {
	tr := newTranslator(t, nil)

	sql := "SELECT * FROM a, b WHERE a.x(+) = b.y(+)"
	res := tr.Translate(sql)

	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, sql, res.SQL)
}

func TestCommaJoinBecomesInnerJoin(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate(
		"SELECT a.id, b.name FROM orders a, customer b WHERE a.cust_id = b.id AND a.total > 0")

	require.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Contains(t, res.SQL, "JOIN customer b ON a.cust_id = b.id")
	assert.Contains(t, res.SQL, "WHERE a.total > 0")
}

func TestCommaJoinWithoutLinkBecomesCrossJoin(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT * FROM a, b")

	assert.Equal(t, ConfidenceMedium, res.Confidence)
	assert.Contains(t, res.SQL, "CROSS JOIN b")
}

func TestCommaJoinLinkNamedConsumerFirst(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT * FROM a, b WHERE b.id = a.id")

	require.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Equal(t, "SELECT * FROM a\n  JOIN b ON b.id = a.id", res.SQL)
	assert.NotContains(t, res.SQL, "CROSS JOIN")
}

func TestOuterJoinChainWithTrailingInnerLink(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate(
		"SELECT * FROM a, b, c WHERE a.x(+) = b.y AND c.id = b.cid")

	require.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Contains(t, res.SQL, "FROM b")
	assert.Contains(t, res.SQL, "LEFT JOIN a ON a.x = b.y")
	assert.Contains(t, res.SQL, "JOIN c ON c.id = b.cid")
	assert.NotContains(t, res.SQL, "CROSS JOIN")
}

func TestJoinConditionOnLeadingTableIsAmbiguous(t *testing.T) {
	tr := newTranslator(t, nil)

	sql := "SELECT * FROM a, b WHERE a.x(+) = b.y AND b.z = a.w"
	res := tr.Translate(sql)

	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, sql, res.SQL)
}

func TestEncodedDateColumnZeroGuard(t *testing.T) {
	lookup := typeMap{"SRC.CUSTOMER.DATE_STATUT": "NUMBER(8)"}
	tr := newTranslator(t, lookup)

	res := tr.Translate("SELECT DATE_STATUT FROM src.customer")

	// 2440588 is the Julian day number of 1970-01-01, so an encoded
	// 2459580 decodes to 1970-01-01 + 18992 days = 2022-01-05.
	assert.Contains(t, res.SQL,
		"CASE WHEN DATE_STATUT = 0 THEN NULL ELSE DATE '1970-01-01' + (DATE_STATUT - 2440588) END")
	assert.Equal(t, ConfidenceMedium, res.Confidence)
}

func TestEncodedDateQualifiedRef(t *testing.T) {
	lookup := typeMap{"EVENTS.DT_CREATED": "INTEGER"}
	tr := newTranslator(t, lookup)

	res := tr.Translate("SELECT e.DT_CREATED FROM events e, other o WHERE e.id = o.id")

	assert.Contains(t, res.SQL, "CASE WHEN e.DT_CREATED = 0 THEN NULL")
}

func TestEncodedDateUnqualifiedRefAcrossTables(t *testing.T) {
	lookup := anyTypeMap{any: map[string]string{"DT_CREATED": "NUMBER(8)"}}
	tr := newTranslator(t, lookup)

	res := tr.Translate("SELECT DT_CREATED FROM events e, other o WHERE e.id = o.id")

	assert.Contains(t, res.SQL, "CASE WHEN DT_CREATED = 0 THEN NULL")
}

func TestEncodedDateUnqualifiedRefWithoutAnySearchIsSkipped(t *testing.T) {
	lookup := typeMap{"EVENTS.DT_CREATED": "NUMBER(8)"}
	tr := newTranslator(t, lookup)

	res := tr.Translate("SELECT DT_CREATED FROM events e, other o WHERE e.id = o.id")

	assert.NotContains(t, res.SQL, "CASE WHEN DT_CREATED")
}

func TestEncodedDateSkipsNonNumericColumns(t *testing.T) {
	lookup := typeMap{"SRC.CUSTOMER.DATE_STATUT": "DATE"}
	tr := newTranslator(t, lookup)

	res := tr.Translate("SELECT DATE_STATUT FROM src.customer")

	assert.Equal(t, "SELECT DATE_STATUT FROM src.customer", res.SQL)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
}

func TestEncodedDateInPredicateIsFlaggedNotRewritten(t *testing.T) {
	lookup := typeMap{"SRC.CUSTOMER.DATE_STATUT": "NUMBER(8)"}
	tr := newTranslator(t, lookup)

	res := tr.Translate("SELECT id FROM src.customer WHERE DATE_STATUT = 0")

	assert.Contains(t, res.SQL, "WHERE DATE_STATUT = 0")
	assert.Equal(t, ConfidenceMedium, res.Confidence)
}

func TestNvlBecomesCoalesce(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT NVL(name, 'unknown') FROM t")

	assert.Contains(t, res.SQL, "COALESCE(name, 'unknown')")
	assert.Equal(t, ConfidenceHigh, res.Confidence)
}

func TestSysdateBecomesCurrentTimestamp(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT id FROM t WHERE created < SYSDATE")

	assert.Contains(t, res.SQL, "created < CURRENT_TIMESTAMP")
}

func TestDecodeBecomesCase(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT DECODE(status, 'A', 1, 'B', 2, 0) FROM t")

	assert.Equal(t,
		"SELECT CASE WHEN status = 'A' THEN 1 WHEN status = 'B' THEN 2 ELSE 0 END FROM t",
		res.SQL)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
}

func TestDecodeNullSearchUsesIsNull(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT DECODE(flag, NULL, 'missing', 'set') FROM t")

	assert.Contains(t, res.SQL, "WHEN flag IS NULL THEN 'missing'")
	assert.Contains(t, res.SQL, "ELSE 'set'")
}

func TestNestedDecode(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT DECODE(a, 1, DECODE(b, 2, 'x', 'y'), 'z') FROM t")

	assert.NotContains(t, strings.ToUpper(res.SQL), "DECODE")
	assert.Contains(t, res.SQL, "WHEN b = 2 THEN 'x'")
}

func TestToDateBecomesStrptime(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT TO_DATE(d, 'YYYY-MM-DD') FROM t")

	assert.Contains(t, res.SQL, "strptime(d, '%Y-%m-%d')")
	assert.Equal(t, ConfidenceHigh, res.Confidence)
}

func TestToCharBecomesStrftime(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT TO_CHAR(d, 'DD/MM/YYYY HH24:MI:SS') FROM t")

	assert.Contains(t, res.SQL, "strftime('%d/%m/%Y %H:%M:%S', d)")
}

func TestToCharSingleArgBecomesCast(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT TO_CHAR(amount) FROM t")

	assert.Contains(t, res.SQL, "CAST(amount AS VARCHAR)")
}

func TestToDateUnknownFormatElementIsFlagged(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT TO_DATE(d, 'J') FROM t")

	assert.Contains(t, res.SQL, "TO_DATE(d, 'J')")
	assert.Equal(t, ConfidenceMedium, res.Confidence)
}

func TestConnectByBecomesRecursiveCTE(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate(
		"SELECT id, parent_id FROM emp e START WITH parent_id IS NULL CONNECT BY PRIOR id = parent_id")

	require.Contains(t, res.SQL, "WITH RECURSIVE hierarchy AS (")
	assert.Contains(t, res.SQL, "SELECT e.id, e.parent_id FROM emp e WHERE parent_id IS NULL")
	assert.Contains(t, res.SQL, "JOIN hierarchy ON e.parent_id = hierarchy.id")
	assert.Contains(t, res.SQL, "SELECT * FROM hierarchy")
}

func TestConnectByWithLevelIsAmbiguous(t *testing.T) {
	tr := newTranslator(t, nil)

	sql := "SELECT id, LEVEL FROM emp START WITH parent_id IS NULL CONNECT BY PRIOR id = parent_id"
	res := tr.Translate(sql)

	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, sql, res.SQL)
}

func TestConnectByWithoutStartWithIsAmbiguous(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT id FROM emp CONNECT BY PRIOR id = parent_id")

	assert.Equal(t, ConfidenceLow, res.Confidence)
}

func TestUnknownFunctionDowngradesConfidence(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT MY_CUSTOM_FN(x) FROM t")

	assert.Equal(t, ConfidenceMedium, res.Confidence)
	assert.Contains(t, res.SQL, "MY_CUSTOM_FN(x)")
	require.Len(t, res.Notes, 1)
	assert.Equal(t, "unknown-function", res.Notes[0].Rule)
}

func TestAllowListedFunctionPassesClean(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT UPPER(TRIM(name)) FROM t")

	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Empty(t, res.Notes)
}

func TestWithAllowListOption(t *testing.T) {
	tr := New(Oracle(), nil, WithAllowList("MY_CUSTOM_FN"))

	res := tr.Translate("SELECT MY_CUSTOM_FN(x) FROM t")

	assert.Equal(t, ConfidenceHigh, res.Confidence)
}

func TestPackageCallIsFlagged(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT DBMS_LOB.GETLENGTH(doc) FROM t")

	assert.Equal(t, ConfidenceMedium, res.Confidence)
	assert.Contains(t, res.SQL, "DBMS_LOB.GETLENGTH(doc)")
	require.Len(t, res.Notes, 1)
	assert.Equal(t, "package-call", res.Notes[0].Rule)
}

func TestDbmsRandomValueBecomesRandom(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT DBMS_RANDOM.VALUE() FROM t")

	assert.Contains(t, res.SQL, "RANDOM()")
	assert.Equal(t, ConfidenceHigh, res.Confidence)
}

func TestSetOperationWithMarkerIsLeftAlone(t *testing.T) {
	tr := newTranslator(t, nil)

	sql := "SELECT a.x FROM a, b WHERE a.id = b.id(+) UNION SELECT y FROM c"
	res := tr.Translate(sql)

	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, sql, res.SQL)
}

func TestTranslationIsDeterministic(t *testing.T) {
	lookup := typeMap{"SRC.CUSTOMER.DATE_STATUT": "NUMBER(8)"}
	sql := "SELECT NVL(c.name, '?'), c.DATE_STATUT " +
		"FROM src.customer c, src.orders o " +
		"WHERE c.id = o.cust_id(+) AND ROWNUM <= 50"

	a := newTranslator(t, lookup).Translate(sql)
	b := newTranslator(t, lookup).Translate(sql)

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("translation not deterministic:\n%#v\n%#v", a, b)
	}
}

func TestCommentsArePreserved(t *testing.T) {
	tr := newTranslator(t, nil)

	res := tr.Translate("SELECT id -- primary key\nFROM t WHERE ROWNUM <= 5")

	assert.Contains(t, res.SQL, "-- primary key")
	assert.Contains(t, res.SQL, "LIMIT 5")
}
