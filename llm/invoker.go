// Package llm defines the boundary to the external text-generation
// capability. The pipeline only ever sees the Invoker interface; the
// concrete transport lives under llm/providers.
package llm

import "context"

// Invoker wraps a single call to a text-generation endpoint.
// role is the generation system-instruction for one pipeline stage;
// prompt is the stage input. This is the only suspension point in the
// pipeline: implementations must honor ctx cancellation and supply
// their own transport timeout.
//
// A single call is best-effort. No retry logic lives behind Invoke;
// resilience is the caller's concern.
type Invoker interface {
	// Invoke performs one generation call and returns the raw result text.
	Invoke(ctx context.Context, role, prompt string) (string, error)

	// Name returns the unique identifier of the backing provider.
	Name() string
}
