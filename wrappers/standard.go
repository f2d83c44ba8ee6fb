// Package wrappers provides ready-made component wrapper generators for the
// serviced export pipeline. The exporter treats every generator as opaque;
// this package is one consumer of that contract, not part of the core.
package wrappers

import (
	"fmt"

	"github.com/GoCodeAlone/serviced"
)

// StandardWrapperSpec generates a wrapper type exposing one named service
// object to the transactional runtime.
type StandardWrapperSpec struct {
	// ComponentName is the generated wrapper type's name. Required.
	ComponentName string

	// ServiceName is the name the underlying object is resolved by. Required.
	ServiceName string

	// Description optionally documents the component in the generated source.
	Description string
}

// NewStandardWrapperSpec creates a wrapper spec for the given component and
// service names.
func NewStandardWrapperSpec(componentName, serviceName string) *StandardWrapperSpec {
	return &StandardWrapperSpec{ComponentName: componentName, ServiceName: serviceName}
}

// GenerateWrapper implements serviced.ComponentWrapperSpec. It adds exactly
// one wrapper type rooted at the given base type to the module.
//
// When a factory is available and the managed resolver is off, the service
// name is validated eagerly so a missing service surfaces at export time
// rather than at first activation inside the runtime. Managed-resolver
// wrappers resolve through the base type's lazily bound capability, so no
// eager check is possible there.
func (s *StandardWrapperSpec) GenerateWrapper(module *serviced.ModuleBuilder, base serviced.AdapterBase, factory serviced.ObjectFactory, useManagedResolver bool) error {
	if s.ComponentName == "" {
		return fmt.Errorf("wrapper spec for service %q: component name is required", s.ServiceName)
	}
	if s.ServiceName == "" {
		return fmt.Errorf("wrapper spec %q: service name is required", s.ComponentName)
	}

	if !useManagedResolver && factory != nil {
		if _, err := factory.GetObject(s.ServiceName); err != nil {
			return fmt.Errorf("service %q is not resolvable: %w", s.ServiceName, err)
		}
	}

	imports := []string{serviced.PlainBaseTypeImport}
	if useManagedResolver {
		imports = []string{"fmt"}
	}
	return module.AddType(&serviced.TypeSpec{
		Name:      s.ComponentName,
		Kind:      serviced.TypeKindWrapper,
		BaseType:  base.TypeName(),
		Component: s.ServiceName,
		Imports:   imports,
		Source:    s.render(base, useManagedResolver),
	})
}

// render produces the wrapper type's source fragment.
func (s *StandardWrapperSpec) render(base serviced.AdapterBase, useManagedResolver bool) string {
	doc := s.Description
	if doc == "" {
		doc = fmt.Sprintf("%s exposes the %q service to the hosting runtime.", s.ComponentName, s.ServiceName)
	}

	if useManagedResolver {
		return fmt.Sprintf(`// %s
type %s struct {
	%s
}

// TargetName names the service object this adapter exposes.
func (%s) TargetName() string { return %q }

// Target resolves the underlying service object through the shared resolver
// capability. An unbound resolver fails here, at the point of use.
func (w *%s) Target() (any, error) {
	resolve := w.resolver()
	if resolve == nil {
		return nil, fmt.Errorf("resolver capability is unbound for %%q", w.TargetName())
	}
	return resolve(w, w.TargetName())
}
`, doc, s.ComponentName, base.TypeName(), s.ComponentName, s.ServiceName, s.ComponentName)
	}

	return fmt.Sprintf(`// %s
type %s struct {
	%s
}

// TargetName names the service object this adapter exposes.
func (%s) TargetName() string { return %q }
`, doc, s.ComponentName, base.TypeName(), s.ComponentName, s.ServiceName)
}
