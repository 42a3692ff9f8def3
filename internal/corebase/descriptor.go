// Package corebase holds small, dependency-free conventions shared across
// the solver's internal packages: layer naming, descriptors, pagination
// limits, and observation hooks.
package corebase

// Layer describes the architectural slice a component belongs to: ingress
// (control plane entrypoints), adapter (chain/bridge/oracle collaborators),
// engine (kernel, auction, router, executor), data (state/persistence), or
// security (reputation, MEV protection).
type Layer string

const (
	LayerIngress  Layer = "ingress"
	LayerAdapter  Layer = "adapter"
	LayerEngine   Layer = "engine"
	LayerData     Layer = "data"
	LayerSecurity Layer = "security"
)

// Descriptor advertises a component's placement and capabilities. It does
// not change runtime behavior, but lets the control plane report what is
// wired in at startup.
type Descriptor struct {
	Name         string
	Domain       string
	Layer        Layer
	Capabilities []string
}

// WithCapabilities returns a copy of the descriptor with additional
// capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
