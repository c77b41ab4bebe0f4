package extract

import (
	"errors"
	"reflect"
	"testing"
)

const workflowXML = `<?xml version="1.0"?>
<unit name="LOAD_CUSTOMER" kind="workflow">
  <step name="TRUNC_STG" kind="truncate" target="STG_CUSTOMER" truncate="true"/>
  <step name="INS_STG" kind="insert" source="SRC.CUSTOMER, SRC.$$REGION$$_ADDR" target="STG_CUSTOMER">
    <sql><![CDATA[
      INSERT INTO STG_CUSTOMER
      SELECT c.ID, c.NAME, a.CITY
      FROM SRC.CUSTOMER c, SRC.$$REGION$$_ADDR a
      WHERE c.ADDR_ID = a.ID(+)
        AND c.LOAD_DT >= $$CUTOFF_DATE$$
    ]]></sql>
  </step>
  <step name="MERGE_DIM" kind="merge" source="STG_CUSTOMER" target="DIM_CUSTOMER">
    <sql>MERGE INTO DIM_CUSTOMER d USING STG_CUSTOMER s ON (d.ID = s.ID)</sql>
  </step>
</unit>`

func TestExtract_Workflow(t *testing.T) {
	unit, err := Extract([]byte(workflowXML), KindWorkflow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if unit.Name != "LOAD_CUSTOMER" {
		t.Errorf("expected name LOAD_CUSTOMER, got %q", unit.Name)
	}
	if len(unit.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(unit.Steps))
	}
	if unit.Complexity != ComplexityLow {
		t.Errorf("expected low complexity, got %s", unit.Complexity)
	}

	if !unit.Steps[0].Truncate {
		t.Error("expected first step to be truncate-before-write")
	}
	wantReads := []string{"SRC.CUSTOMER", "SRC.$$REGION$$_ADDR"}
	if !reflect.DeepEqual(unit.Steps[1].Reads, wantReads) {
		t.Errorf("expected reads %v, got %v", wantReads, unit.Steps[1].Reads)
	}
	if !reflect.DeepEqual(unit.Steps[1].Writes, []string{"STG_CUSTOMER"}) {
		t.Errorf("unexpected writes: %v", unit.Steps[1].Writes)
	}

	// Placeholders in first-seen order, deduped, unresolved.
	wantVars := []string{"REGION", "CUTOFF_DATE"}
	if !reflect.DeepEqual(unit.Variables, wantVars) {
		t.Errorf("expected variables %v, got %v", wantVars, unit.Variables)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	a, err := Extract([]byte(workflowXML), KindWorkflow)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Extract([]byte(workflowXML), KindWorkflow)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical bytes must yield a structurally identical unit")
	}
}

func TestExtract_Statement(t *testing.T) {
	data := []byte(`<unit name="RPT_DAILY" kind="statement">
		<step name="RPT_DAILY" kind="select">
			<sql>SELECT * FROM SALES WHERE ROWNUM &lt;= 10</sql>
		</step>
	</unit>`)

	unit, err := Extract(data, KindStatement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unit.Kind != KindStatement {
		t.Errorf("expected statement kind, got %s", unit.Kind)
	}
	if len(unit.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(unit.Steps))
	}
}

func TestExtract_UnitLevelRefs(t *testing.T) {
	unit, err := Extract([]byte(workflowXML), KindWorkflow)
	if err != nil {
		t.Fatal(err)
	}

	wantReads := []string{"SRC.CUSTOMER", "SRC.$$REGION$$_ADDR", "STG_CUSTOMER"}
	if !reflect.DeepEqual(unit.Reads(), wantReads) {
		t.Errorf("expected unit reads %v, got %v", wantReads, unit.Reads())
	}
	wantWrites := []string{"STG_CUSTOMER", "DIM_CUSTOMER"}
	if !reflect.DeepEqual(unit.Writes(), wantWrites) {
		t.Errorf("expected unit writes %v, got %v", wantWrites, unit.Writes())
	}
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		kind   ArtifactKind
		reason string
	}{
		{
			name:   "invalid xml",
			data:   `<unit name="X"`,
			kind:   KindWorkflow,
			reason: ReasonInvalidXML,
		},
		{
			name:   "wrong root",
			data:   `<mapping name="X"><step name="s" kind="insert"/></mapping>`,
			kind:   KindWorkflow,
			reason: ReasonWrongRoot,
		},
		{
			name:   "missing name",
			data:   `<unit kind="workflow"><step name="s" kind="insert"/></unit>`,
			kind:   KindWorkflow,
			reason: ReasonMissingName,
		},
		{
			name:   "kind mismatch",
			data:   `<unit name="X" kind="workflow"><step name="s" kind="insert"/></unit>`,
			kind:   KindStatement,
			reason: ReasonKindMismatch,
		},
		{
			name:   "no steps",
			data:   `<unit name="X" kind="workflow"></unit>`,
			kind:   KindWorkflow,
			reason: ReasonNoSteps,
		},
		{
			name:   "statement with two steps",
			data:   `<unit name="X" kind="statement"><step name="a" kind="select"><sql>SELECT 1</sql></step><step name="b" kind="select"><sql>SELECT 2</sql></step></unit>`,
			kind:   KindStatement,
			reason: ReasonStatementMany,
		},
		{
			name:   "statement without sql",
			data:   `<unit name="X" kind="statement"><step name="a" kind="select"/></unit>`,
			kind:   KindStatement,
			reason: ReasonStatementSQL,
		},
		{
			name:   "step without kind",
			data:   `<unit name="X" kind="workflow"><step name="a"/></unit>`,
			kind:   KindWorkflow,
			reason: ReasonStepNoKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, err := Extract([]byte(tt.data), tt.kind)
			if unit != nil {
				t.Error("malformed artifact must not yield a partial unit")
			}
			var extErr *ExtractionError
			if !errors.As(err, &extErr) {
				t.Fatalf("expected *ExtractionError, got %T: %v", err, err)
			}
			if extErr.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, extErr.Reason)
			}
		})
	}
}

func TestComplexityBuckets(t *testing.T) {
	tests := []struct {
		steps int
		want  Complexity
	}{
		{1, ComplexityLow},
		{4, ComplexityLow},
		{5, ComplexityMedium},
		{15, ComplexityMedium},
		{16, ComplexityHigh},
	}
	for _, tt := range tests {
		if got := complexityFor(tt.steps); got != tt.want {
			t.Errorf("complexityFor(%d) = %s, want %s", tt.steps, got, tt.want)
		}
	}
}
