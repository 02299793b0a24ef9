package brain

import "errors"

// Error kinds shared by every analysis package. Callers match them with
// errors.Is; call sites wrap them with context via fmt.Errorf("...: %w").
var (
	// ErrStructural: the operation is undefined for the current graph shape
	// (spanning forest on a directed graph, modularity with <2 nodes).
	ErrStructural = errors.New("structural error")

	// ErrInput: malformed arguments (bad threshold combination, non-square
	// matrix, missing coordinates for a spatial operation).
	ErrInput = errors.New("invalid input")

	// ErrInsufficientResource: a requested budget exceeds what the graph can
	// supply. Always returned before any mutation.
	ErrInsufficientResource = errors.New("insufficient resource")

	// ErrNotComputed: a derived value was read before it was computed.
	ErrNotComputed = errors.New("not computed")

	// ErrNotFound: unknown node or edge.
	ErrNotFound = errors.New("not found")
)
