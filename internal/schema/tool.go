// Package schema contains the core contracts shared across axon packages.
// Concrete implementations live in their respective packages; this package is
// the single canonical source of truth for the shared type definitions.
package schema

import (
	"context"

	"google.golang.org/genai"
)

// Tool is the interface all locally implemented callable tools must satisfy.
// Connector-sourced tools never appear as Tool values; they stay declaration
// lists owned by the connector source and are executed remotely.
type Tool interface {
	Name() string
	// Declaration returns the function declaration exposed to the live
	// session's function-calling config. A nil declaration means the tool
	// cannot be advertised; the registry skips it with a warning.
	Declaration() *genai.FunctionDeclaration
	Execute(ctx context.Context, args map[string]any) (any, error)
}
