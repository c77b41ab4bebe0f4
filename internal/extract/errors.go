package extract

import "fmt"

// ExtractionError reports a malformed artifact. Extraction is
// all-or-nothing: a unit is either fully parsed or this error is
// returned, never a partial result. Batch callers are expected to
// record the error and continue with the next artifact.
type ExtractionError struct {
	// Artifact identifies the offending artifact (unit name if known,
	// otherwise whatever identity the caller supplied)
	Artifact string
	// Reason is a short machine-readable reason code
	Reason string
	// Fragment is the offending fragment of the input, if available
	Fragment string
}

func (e *ExtractionError) Error() string {
	if e.Fragment != "" {
		return fmt.Sprintf("extraction failed for %q: %s (near %q)", e.Artifact, e.Reason, e.Fragment)
	}
	return fmt.Sprintf("extraction failed for %q: %s", e.Artifact, e.Reason)
}

// Reason codes used by the extractor.
const (
	ReasonInvalidXML    = "invalid xml"
	ReasonWrongRoot     = "root element is not <unit>"
	ReasonMissingName   = "unit has no name attribute"
	ReasonKindMismatch  = "declared kind does not match requested kind"
	ReasonUnknownKind   = "unknown artifact kind"
	ReasonNoSteps       = "unit has no steps"
	ReasonStatementMany = "statement unit must have exactly one step"
	ReasonStatementSQL  = "statement unit step must embed a sql block"
	ReasonStepNoName    = "step has no name attribute"
	ReasonStepNoKind    = "step has no kind attribute"
)
