package dag

import "strings"

// CycleError reports a dependency cycle. Path starts and ends on the
// same unit. A cycle is fatal: no partial plan is produced.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}
