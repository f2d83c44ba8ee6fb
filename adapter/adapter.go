// Package adapter holds the runtime-facing adapter base type that generated
// modules embed when the managed resolver is disabled. It ships as a normal
// importable package so exported modules need no synthesized base type in
// that configuration.
package adapter

// ServicedAdapter is the plain built-in adapter base type. It carries no
// resolver capability; wrappers rooted at it obtain their service objects
// through whatever mechanism their generator emitted.
type ServicedAdapter struct{}

// Activate is the runtime's activation hook. The plain base has no
// activation-time work.
func (ServicedAdapter) Activate() error { return nil }

// Deactivate is the runtime's deactivation hook.
func (ServicedAdapter) Deactivate() error { return nil }
