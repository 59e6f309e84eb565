package symtab

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclicNesting indicates enclosing references that form a cycle. The
// input is corrupt and the whole pass is rejected.
var ErrCyclicNesting = errors.New("cyclic nesting")

// CycleError names the classes taking part in each nesting cycle.
type CycleError struct {
	Cycles [][]string // each cycle's binary names, sorted
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Cycles))
	for _, c := range e.Cycles {
		parts = append(parts, "["+strings.Join(c, ", ")+"]")
	}
	return fmt.Sprintf("%v: %s", ErrCyclicNesting, strings.Join(parts, " "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicNesting
}
