// Package serviced exports already-configured service objects as hosted
// components for an external transactional component runtime.
//
// Given a ComponentExportSpec describing an application and its components,
// the exporter synthesizes adapter types that let the transactional runtime
// manage those objects under its own activation, security, and queuing
// policies, packages the adapters into a freshly built binary module, and
// registers that module with the runtime.
//
// The exporter never resolves service objects itself. Resolution is provided
// by the caller through an ObjectFactory ("resolve by name" capability) and
// forwarded to the per-component wrapper generators. The transactional runtime
// itself stays behind the RuntimeRegistrar interface, so the whole pipeline is
// testable against a stub runtime.
//
// Basic usage:
//
//	exporter, err := serviced.NewComponentExporter(
//		serviced.WithLogger(logger),
//		serviced.WithObjectFactory(factory),
//		serviced.WithRegistrar(registrar),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := exporter.Export(ctx, spec)
package serviced

// ObjectFactory is the inbound collaborator capability: it resolves a named
// service instance from whatever container the host application uses. The
// exporter only forwards this capability to wrapper generation; it never
// manages the lifecycle of the resolved objects.
type ObjectFactory interface {
	// GetObject returns the service instance registered under name.
	GetObject(name string) (any, error)
}

// ObjectFactoryFunc adapts a plain function to the ObjectFactory interface.
type ObjectFactoryFunc func(name string) (any, error)

// GetObject implements ObjectFactory by calling the function.
func (f ObjectFactoryFunc) GetObject(name string) (any, error) {
	return f(name)
}

// ComponentWrapperSpec is the outbound collaborator contract for per-component
// wrapper generation. Its internal shape is opaque to the exporter: the only
// obligation is that GenerateWrapper mutates the module in place by adding
// exactly one new type rooted at the given base type.
//
// During an export each spec is invoked exactly once, in list order, against
// the same module and base type instance. Generation is strictly sequential
// because all specs mutate one shared module.
type ComponentWrapperSpec interface {
	// GenerateWrapper adds this component's wrapper type to the module.
	// The factory capability and the useManagedResolver flag are forwarded
	// unchanged from the export spec; the generator decides how its wrapper
	// obtains the underlying service object at activation time.
	GenerateWrapper(module *ModuleBuilder, base AdapterBase, factory ObjectFactory, useManagedResolver bool) error
}
