package serviced

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
)

// testLogger routes exporter logs to the test log.
type testLogger struct {
	t *testing.T
}

func (l *testLogger) Info(msg string, args ...any)  { l.t.Log(append([]any{"INFO", msg}, args...)...) }
func (l *testLogger) Error(msg string, args ...any) { l.t.Log(append([]any{"ERROR", msg}, args...)...) }
func (l *testLogger) Warn(msg string, args ...any)  { l.t.Log(append([]any{"WARN", msg}, args...)...) }
func (l *testLogger) Debug(msg string, args ...any) { l.t.Log(append([]any{"DEBUG", msg}, args...)...) }

// recordingLogger captures log calls for assertions on the fail-soft paths,
// where the log stream is the only observable failure signal.
type recordingLogger struct {
	mu      sync.Mutex
	errors  []string
	debugs  []string
	infos   []string
	warns   []string
}

func (l *recordingLogger) record(target *[]string, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*target = append(*target, msg)
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.record(&l.infos, msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record(&l.errors, msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record(&l.warns, msg) }
func (l *recordingLogger) Debug(msg string, _ ...any) { l.record(&l.debugs, msg) }

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// fakeCompiler stands in for the Go toolchain: it writes the rendered source
// unit to the artifact path so persistence and signing can be exercised.
type fakeCompiler struct {
	mu       sync.Mutex
	err      error
	compiled []string
}

func (c *fakeCompiler) Compile(_ context.Context, moduleName string, source []byte, outputPath string) error {
	c.mu.Lock()
	c.compiled = append(c.compiled, moduleName)
	c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(outputPath, source, 0o644)
}

// stubRegistrar records registration descriptors and answers with a canned
// result.
type stubRegistrar struct {
	mu     sync.Mutex
	calls  []RegistrationDescriptor
	result *RegistrationResult
	err    error
}

func (r *stubRegistrar) Register(_ context.Context, descriptor RegistrationDescriptor) (*RegistrationResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, descriptor)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &RegistrationResult{ApplicationID: "stub-app"}, nil
}

// mapModule is an in-memory ResolvedModule backed by a symbol map.
type mapModule map[string]any

func (m mapModule) Lookup(symbol string) (any, error) {
	sym, ok := m[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %q not found", symbol)
	}
	return sym, nil
}

// stubLoader serves companion modules from memory. Path loads always fail
// unless a module is registered under the exact path; canonical loads answer
// from the canonical map.
type stubLoader struct {
	byPath    map[string]ResolvedModule
	canonical map[string]ResolvedModule
	loads     int
}

func (l *stubLoader) Load(path string) (ResolvedModule, error) {
	l.loads++
	if m, ok := l.byPath[path]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("no module at %q", path)
}

func (l *stubLoader) LoadCanonical(identity string) (ResolvedModule, error) {
	l.loads++
	if m, ok := l.canonical[identity]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("no module with identity %q", identity)
}

// stubResolverProvider exposes a Resolve method with the callback shape, the
// way a real companion module's provider would.
type stubResolverProvider struct {
	objects map[string]any
}

func (p *stubResolverProvider) Resolve(_ any, target string) (any, error) {
	obj, ok := p.objects[target]
	if !ok {
		return nil, fmt.Errorf("no object named %q", target)
	}
	return obj, nil
}

// countingWrapperSpec adds one wrapper type and counts its invocations.
type countingWrapperSpec struct {
	name    string
	service string
	calls   int
	err     error
}

func (s *countingWrapperSpec) GenerateWrapper(module *ModuleBuilder, base AdapterBase, _ ObjectFactory, _ bool) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return module.AddType(&TypeSpec{
		Name:      s.name,
		Kind:      TypeKindWrapper,
		BaseType:  base.TypeName(),
		Component: s.service,
		Source:    fmt.Sprintf("type %s struct{}\n", s.name),
	})
}
