package planner

import "github.com/pkg/errors"

// Planning fails with one of these errors, wrapped with details. Test with
// errors.Is.
var (
	// ErrMetadataInconsistency means a field is declared servable by a
	// subgraph that has no compatible resolver or variable path.
	ErrMetadataInconsistency = errors.New("metadata inconsistency")
	// ErrUnreachableStep means a step has no resolver and its path from the
	// root is not served by its subgraph.
	ErrUnreachableStep = errors.New("unreachable step")
	// ErrIncompletePlan means a selection is not covered exactly once or
	// steps were left unplaced.
	ErrIncompletePlan = errors.New("incomplete plan")
	// ErrInvariantViolation means a step does not match the schema it targets.
	ErrInvariantViolation = errors.New("invariant violation")
)
