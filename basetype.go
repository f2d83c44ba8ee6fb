package serviced

import (
	"fmt"
)

// Well-known type names used in generated modules.
const (
	// PlainBaseTypeName is the runtime's built-in adapter base type, used
	// when the managed resolver is disabled. It lives in the importable
	// adapter package rather than in the generated module itself.
	PlainBaseTypeName = "adapter.ServicedAdapter"

	// PlainBaseTypeImport is the import path generated wrappers need when
	// rooted at the plain base type.
	PlainBaseTypeImport = "github.com/GoCodeAlone/serviced/adapter"

	// ManagedBaseTypeName is the synthesized base adapter type carrying the
	// lazily bound resolver capability.
	ManagedBaseTypeName = "ManagedServicedAdapter"

	// ResolverCallbackTypeName is the callback-shape type emitted alongside
	// the synthesized base type.
	ResolverCallbackTypeName = "ResolverCallback"
)

// AdapterBase is the base type wrapper generation roots its adapter types at.
// It is either the runtime's plain built-in base or a synthesized managed
// base produced by BaseTypeSynthesizer.
type AdapterBase interface {
	// TypeName is the base type's name in the generated module.
	TypeName() string

	// Managed reports whether adapters rooted here carry the lazily bound
	// resolver capability.
	Managed() bool
}

// PlainAdapterBase is the runtime's built-in adapter base type. It carries no
// resolver capability; wrappers rooted at it obtain their service objects
// through whatever mechanism their generator emits.
type PlainAdapterBase struct{}

// TypeName implements AdapterBase.
func (PlainAdapterBase) TypeName() string { return PlainBaseTypeName }

// Managed implements AdapterBase.
func (PlainAdapterBase) Managed() bool { return false }

// ManagedAdapterBase is the synthesized shared base adapter type. Every
// wrapper rooted at it inherits, at zero per-wrapper cost, the lazily bound
// resolver capability held by the binding.
type ManagedAdapterBase struct {
	name    string
	binding *ResolverBinding
}

// TypeName implements AdapterBase.
func (b *ManagedAdapterBase) TypeName() string { return b.name }

// Managed implements AdapterBase.
func (b *ManagedAdapterBase) Managed() bool { return true }

// Binding returns the base type's shared resolver binding.
func (b *ManagedAdapterBase) Binding() *ResolverBinding { return b.binding }

// Resolve resolves the named service for an adapter instance through the
// shared binding, triggering the one-shot binding attempt on first use.
func (b *ManagedAdapterBase) Resolve(adapter any, target string) (any, error) {
	return b.binding.Resolve(adapter, target)
}

// BaseTypeSynthesizer builds the shared managed base adapter type for an
// export. One synthesizer serves one export invocation.
type BaseTypeSynthesizer struct {
	logger      Logger
	bindingOpts []BindingOption
}

// NewBaseTypeSynthesizer creates a synthesizer. The binding options are
// forwarded to the resolver binding the synthesized base type carries.
func NewBaseTypeSynthesizer(logger Logger, opts ...BindingOption) *BaseTypeSynthesizer {
	return &BaseTypeSynthesizer{logger: logger, bindingOpts: opts}
}

// Synthesize adds the managed base type and its callback-shape type to the
// module and returns the base for wrapper generation to root adapters at.
//
// Exactly two types are added: ResolverCallbackTypeName and
// ManagedBaseTypeName. The returned base carries a shared ResolverBinding
// with the same one-shot fail-soft contract the emitted source implements,
// so the binding behavior is exercised by runtime code rather than by the
// rendered source alone.
func (s *BaseTypeSynthesizer) Synthesize(module *ModuleBuilder) (*ManagedAdapterBase, error) {
	binding := NewResolverBinding(s.logger, s.bindingOpts...)

	callback := &TypeSpec{
		Name:   ResolverCallbackTypeName,
		Kind:   TypeKindCallback,
		Source: renderResolverCallbackType(),
	}
	if err := module.AddType(callback); err != nil {
		return nil, fmt.Errorf("adding callback type: %w", err)
	}

	base := &TypeSpec{
		Name:    ManagedBaseTypeName,
		Kind:    TypeKindBase,
		Imports: []string{"fmt", "log", "os", "path/filepath", "plugin", "reflect", "sync"},
		Source:  renderManagedBaseType(),
	}
	if err := module.AddType(base); err != nil {
		return nil, fmt.Errorf("adding base type: %w", err)
	}

	s.logger.Debug("synthesized managed base type", "module", module.Name(), "type", ManagedBaseTypeName)
	return &ManagedAdapterBase{name: ManagedBaseTypeName, binding: binding}, nil
}

// renderResolverCallbackType renders the callback-shape type fragment.
func renderResolverCallbackType() string {
	return fmt.Sprintf(`// %s is the shape of the resolver capability: resolve the named
// service object for a running adapter instance.
type %s func(adapter any, target string) (any, error)
`, ResolverCallbackTypeName, ResolverCallbackTypeName)
}

// renderManagedBaseType renders the synthesized base type fragment. The
// static resolver field starts unbound; resolverInit runs exactly once, at
// first use, and swallows every failure so an absent companion module never
// blocks the base type from loading.
func renderManagedBaseType() string {
	return fmt.Sprintf(`// %s is the shared base adapter type. Its resolver capability is
// bound lazily, at first use, from the companion resolver module.
type %s struct{}

var (
	resolverInit sync.Once
	boundResolver %s
)

// resolver returns the shared resolver capability, triggering the one-shot
// binding attempt on first use. A nil return means the attempt failed and the
// capability is permanently unbound.
func (%s) resolver() %s {
	resolverInit.Do(bindResolver)
	return boundResolver
}

// bindResolver locates the companion resolver module beside this module,
// falling back to its canonical identity, and binds the provider's resolve
// operation. All failures are logged and swallowed: an unbound resolver fails
// only at its point of use.
func bindResolver() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("serviced: resolver binding panicked: %%v", r)
		}
	}()
	provider, err := loadResolverProvider(%q, %q, %q)
	if err != nil {
		log.Printf("serviced: resolver binding failed: %%v", err)
		return
	}
	boundResolver = provider
}

// loadResolverProvider opens the companion module, preferring the path beside
// the executing module over the canonical identity, and binds the provider's
// resolve operation to the callback shape via reflection.
func loadResolverProvider(companion, identity, symbol string) (ResolverCallback, error) {
	var companionModule *plugin.Plugin
	if exe, err := os.Executable(); err == nil {
		if opened, err := plugin.Open(filepath.Join(filepath.Dir(exe), companion)); err == nil {
			companionModule = opened
		}
	}
	if companionModule == nil {
		opened, err := plugin.Open(identity)
		if err != nil {
			return nil, fmt.Errorf("companion module unavailable: %%w", err)
		}
		companionModule = opened
	}

	sym, err := companionModule.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("provider symbol %%q missing: %%w", symbol, err)
	}
	if fn, ok := sym.(func(any, string) (any, error)); ok {
		return ResolverCallback(fn), nil
	}

	resolve := reflect.ValueOf(sym).MethodByName("Resolve")
	if !resolve.IsValid() {
		return nil, fmt.Errorf("provider %%T exposes no Resolve operation", sym)
	}
	return func(adapter any, target string) (any, error) {
		out := resolve.Call([]reflect.Value{reflect.ValueOf(&adapter).Elem(), reflect.ValueOf(target)})
		var callErr error
		if !out[1].IsNil() {
			callErr = out[1].Interface().(error)
		}
		return out[0].Interface(), callErr
	}, nil
}
`, ManagedBaseTypeName, ManagedBaseTypeName, ResolverCallbackTypeName,
		ManagedBaseTypeName, ResolverCallbackTypeName,
		DefaultCompanionModuleFile, DefaultCompanionModuleIdentity, DefaultResolverProviderSymbol)
}
