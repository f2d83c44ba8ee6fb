package serviced

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
)

// ResolverFunc is the callback shape of the resolver capability: resolve the
// named service object for a running adapter instance.
type ResolverFunc func(adapter any, target string) (any, error)

// Default companion-module conventions. The companion module supplies the
// resolver-provider; it ships separately from the exported module and may
// legitimately be absent at load time.
const (
	// DefaultCompanionModuleFile is the companion module's file name,
	// looked up relative to the directory containing the currently
	// executing module.
	DefaultCompanionModuleFile = "serviced.resolver" + ModuleSuffix

	// DefaultCompanionModuleIdentity is the companion module's canonical
	// qualified identity, used as the fallback through the host's normal
	// module-resolution search.
	DefaultCompanionModuleIdentity = "serviced.resolver"

	// DefaultResolverProviderSymbol is the well-known symbol within the
	// companion module whose resolve operation is bound into the callback.
	DefaultResolverProviderSymbol = "ResolverProvider"
)

// ResolvedModule is a loaded companion module. Lookup locates an exported
// symbol by name.
type ResolvedModule interface {
	Lookup(symbol string) (any, error)
}

// ModuleLoader loads companion modules. The production loader opens plugin
// objects; tests substitute in-memory loaders.
type ModuleLoader interface {
	// Load opens a module from an explicit file path.
	Load(path string) (ResolvedModule, error)

	// LoadCanonical opens a module by its canonical qualified identity
	// through the host's normal module-resolution search.
	LoadCanonical(identity string) (ResolvedModule, error)
}

// BindingState describes where a ResolverBinding is in its one-shot life
// cycle.
type BindingState int

const (
	// BindingUnbound means no binding attempt has run yet.
	BindingUnbound BindingState = iota

	// BindingBound means the first-use attempt succeeded and the callback
	// is usable.
	BindingBound

	// BindingFailed means the first-use attempt ran and failed. The state
	// is terminal: the attempt is never retried.
	BindingFailed
)

// String returns the state's name.
func (s BindingState) String() string {
	switch s {
	case BindingBound:
		return "bound"
	case BindingFailed:
		return "unbound-after-failed-attempt"
	default:
		return "unbound"
	}
}

// ResolverBinding is the lazily bound resolver capability shared by every
// adapter rooted at a synthesized base type.
//
// The binding is evaluated exactly once, at first use, and the evaluation is
// fail-soft: any failure while locating the companion module or binding the
// provider's resolve operation is logged and swallowed, leaving the binding
// permanently unbound. An optional dependency's absence must never block the
// base type from loading, because that would transitively block every
// exported component. A caller that actually invokes an unbound binding fails
// only at that point of use, with ErrResolverUnbound.
//
// ResolverBinding is safe for concurrent first use; adapters may race on the
// first resolve.
type ResolverBinding struct {
	once  sync.Once
	state atomic.Int32
	fn    ResolverFunc

	loader    ModuleLoader
	logger    Logger
	companion string
	identity  string
	symbol    string
}

// BindingOption configures a ResolverBinding.
type BindingOption func(*ResolverBinding)

// WithBindingLoader sets the companion-module loader.
func WithBindingLoader(loader ModuleLoader) BindingOption {
	return func(b *ResolverBinding) { b.loader = loader }
}

// WithBindingCompanion overrides the companion module file name, canonical
// identity, and provider symbol.
func WithBindingCompanion(file, identity, symbol string) BindingOption {
	return func(b *ResolverBinding) {
		b.companion = file
		b.identity = identity
		b.symbol = symbol
	}
}

// NewResolverBinding creates an unbound resolver binding. The logger receives
// the fail-soft diagnostics; it is required because a swallowed failure is
// otherwise invisible.
func NewResolverBinding(logger Logger, opts ...BindingOption) *ResolverBinding {
	b := &ResolverBinding{
		logger:    logger,
		loader:    pluginModuleLoader{},
		companion: DefaultCompanionModuleFile,
		identity:  DefaultCompanionModuleIdentity,
		symbol:    DefaultResolverProviderSymbol,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State reports the binding's current state without triggering evaluation.
func (b *ResolverBinding) State() BindingState {
	return BindingState(b.state.Load())
}

// Resolve invokes the bound resolver capability for the given adapter and
// target name. The first call triggers the one-shot binding attempt; if the
// attempt failed, Resolve returns ErrResolverUnbound on this and every later
// call.
func (b *ResolverBinding) Resolve(adapter any, target string) (any, error) {
	b.once.Do(b.bind)
	if b.fn == nil {
		return nil, fmt.Errorf("resolving %q: %w", target, ErrResolverUnbound)
	}
	return b.fn(adapter, target)
}

// bind is the one-shot binding attempt. It swallows every failure by
// contract: errors and panics are logged through the binding's logger and the
// binding is left in the failed state.
func (b *ResolverBinding) bind() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("resolver binding panicked, leaving resolver unbound", "panic", r)
			b.state.Store(int32(BindingFailed))
		}
	}()

	fn, err := b.attemptBind()
	if err != nil {
		b.logger.Error("resolver binding failed, leaving resolver unbound", "error", err)
		b.state.Store(int32(BindingFailed))
		return
	}

	b.fn = fn
	b.state.Store(int32(BindingBound))
	b.logger.Debug("resolver capability bound", "symbol", b.symbol)
}

// attemptBind performs the three binding steps: companion module next to the
// executing module, canonical-identity fallback, then reflective late binding
// of the provider's resolve operation.
func (b *ResolverBinding) attemptBind() (ResolverFunc, error) {
	module := b.loadCompanion()
	if module == nil {
		return nil, fmt.Errorf("%w: tried %q beside the executing module and identity %q", ErrCompanionModuleNotFound, b.companion, b.identity)
	}

	symbol, err := module.Lookup(b.symbol)
	if err != nil || symbol == nil {
		return nil, fmt.Errorf("%w: %q", ErrResolverSymbolMissing, b.symbol)
	}

	return bindResolverSymbol(symbol)
}

// loadCompanion tries the path relative to the executing module's directory
// first, then the canonical identity through normal resolution. A nil return
// means both attempts failed; the individual failures are logged at debug
// level because absence is an expected condition.
func (b *ResolverBinding) loadCompanion() ResolvedModule {
	if dir, err := executingModuleDir(); err == nil {
		path := filepath.Join(dir, b.companion)
		if module, err := b.loader.Load(path); err == nil && module != nil {
			b.logger.Debug("companion module loaded", "path", path)
			return module
		} else if err != nil {
			b.logger.Debug("companion module not found beside executing module", "path", path, "error", err)
		}
	}

	module, err := b.loader.LoadCanonical(b.identity)
	if err != nil || module == nil {
		b.logger.Debug("companion module not found by canonical identity", "identity", b.identity, "error", err)
		return nil
	}
	b.logger.Debug("companion module loaded by canonical identity", "identity", b.identity)
	return module
}

// bindResolverSymbol turns the provider symbol into the callback shape via
// late (reflective) binding. The symbol may already have the callback shape,
// or it may be a provider object exposing a Resolve method with the shape's
// signature.
func bindResolverSymbol(symbol any) (ResolverFunc, error) {
	switch provider := symbol.(type) {
	case ResolverFunc:
		return provider, nil
	case func(any, string) (any, error):
		return provider, nil
	case *ResolverFunc:
		if provider == nil || *provider == nil {
			return nil, fmt.Errorf("%w: nil resolver func", ErrResolverShapeInvalid)
		}
		return *provider, nil
	}

	value := reflect.ValueOf(symbol)
	method := value.MethodByName("Resolve")
	if !method.IsValid() && value.Kind() == reflect.Ptr && !value.IsNil() {
		method = value.Elem().MethodByName("Resolve")
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %T has no Resolve method", ErrResolverShapeInvalid, symbol)
	}

	mt := method.Type()
	if mt.NumIn() != 2 || mt.NumOut() != 2 ||
		mt.In(0).Kind() != reflect.Interface || mt.In(1).Kind() != reflect.String ||
		mt.Out(0).Kind() != reflect.Interface || !mt.Out(1).Implements(errorInterface) {
		return nil, fmt.Errorf("%w: %T.Resolve has signature %s", ErrResolverShapeInvalid, symbol, mt)
	}

	return func(adapter any, target string) (any, error) {
		in := []reflect.Value{reflect.ValueOf(&adapter).Elem(), reflect.ValueOf(target)}
		out := method.Call(in)
		var err error
		if !out[1].IsNil() {
			err = out[1].Interface().(error)
		}
		return out[0].Interface(), err
	}, nil
}

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

// executingModuleDir returns the directory containing the currently executing
// module.
func executingModuleDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executing module: %w", err)
	}
	return filepath.Dir(exe), nil
}
