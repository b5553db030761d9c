package spatial

import "github.com/Carmen-Shannon/oxy-ssbo/engine/ssbo"

// ProtocolBuilderOption is a functional option for configuring a Protocol.
// Use the With* functions to create options.
type ProtocolBuilderOption func(p *Protocol)

// WithExecutor sets the executor every phase is dispatched through.
// Defaults to Sequential.
//
// Parameters:
//   - exec: the executor, nil keeps the default
//
// Returns:
//   - ProtocolBuilderOption: option function to apply
func WithExecutor(exec Executor) ProtocolBuilderOption {
	return func(p *Protocol) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithInitialValue loads a buffer value at construction, equivalent to calling Load.
//
// Parameters:
//   - value: the buffer value in field order
//
// Returns:
//   - ProtocolBuilderOption: option function to apply
func WithInitialValue(value ssbo.Record) ProtocolBuilderOption {
	return func(p *Protocol) {
		p.initial = value
	}
}
