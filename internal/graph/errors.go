package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigurationMismatch is returned when a delta's indices do not match its base graph.
	ErrConfigurationMismatch = errors.New("graph configuration mismatch")
	// ErrUnsupportedOperation is the panic value for operations a component never supports.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// ConfigurationError reports differing index sets between a graph and a delta.
type ConfigurationError struct {
	GraphIndices []string
	DeltaIndices []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: graph indices [%s], delta indices [%s]",
		ErrConfigurationMismatch,
		strings.Join(e.GraphIndices, ", "),
		strings.Join(e.DeltaIndices, ", "))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfigurationMismatch
}

func unsupported(op string) {
	panic(fmt.Errorf("%s: %w", op, ErrUnsupportedOperation))
}
