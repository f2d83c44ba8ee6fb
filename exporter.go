package serviced

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"embed"
	"encoding/pem"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed keys/signing.key
var embeddedKeys embed.FS

// signingKeyResource is the embedded resource holding the fixed module
// signing key pair. It ships inside the exporter binary and is not
// externally configurable.
const signingKeyResource = "keys/signing.key"

// moduleSignatureSuffix is appended to the artifact file name to form the
// detached signature file's name.
const moduleSignatureSuffix = ".sig"

// ComponentExporter coordinates the whole export: it builds the binary
// module, applies metadata, selects or synthesizes the base adapter type,
// delegates per-component wrapper generation, persists and signs the module,
// and submits it for registration with the transactional runtime.
//
// The pipeline is single-threaded and synchronous; the blocking points are
// module compilation and the registrar call. Concurrent exports racing on the
// same output module name are a caller-level hazard the exporter does not
// guard against.
type ComponentExporter struct {
	logger      Logger
	factory     ObjectFactory
	registrar   RuntimeRegistrar
	compiler    ModuleCompiler
	subject     Subject
	keys        fs.FS
	outputDir   string
	bindingOpts []BindingOption
}

// ExporterOption configures a ComponentExporter.
type ExporterOption func(*ComponentExporter)

// WithLogger sets the exporter's logger. Required.
func WithLogger(logger Logger) ExporterOption {
	return func(e *ComponentExporter) { e.logger = logger }
}

// WithObjectFactory injects the resolve-by-name capability forwarded to
// wrapper generation. The exporter never resolves objects itself.
func WithObjectFactory(factory ObjectFactory) ExporterOption {
	return func(e *ComponentExporter) { e.factory = factory }
}

// WithRegistrar sets the transactional runtime registrar. Defaults to a
// LogRegistrar when unset.
func WithRegistrar(registrar RuntimeRegistrar) ExporterOption {
	return func(e *ComponentExporter) { e.registrar = registrar }
}

// WithCompiler sets the module compiler. Defaults to the Go plugin compiler.
func WithCompiler(compiler ModuleCompiler) ExporterOption {
	return func(e *ComponentExporter) { e.compiler = compiler }
}

// WithSubject attaches an observer subject that receives export lifecycle
// events.
func WithSubject(subject Subject) ExporterOption {
	return func(e *ComponentExporter) { e.subject = subject }
}

// WithOutputDir overrides the artifact directory. The default is the
// directory containing the exporter's own executable.
func WithOutputDir(dir string) ExporterOption {
	return func(e *ComponentExporter) { e.outputDir = dir }
}

// WithResolverBindingOptions forwards options to the resolver binding of any
// synthesized base type.
func WithResolverBindingOptions(opts ...BindingOption) ExporterOption {
	return func(e *ComponentExporter) { e.bindingOpts = opts }
}

// withKeyResources substitutes the embedded key resource bundle. Exposed only
// to tests in this package; the production key material is fixed.
func withKeyResources(bundle fs.FS) ExporterOption {
	return func(e *ComponentExporter) { e.keys = bundle }
}

// NewComponentExporter creates an exporter from the given options. A logger
// is required; everything else has defaults suitable for production use.
func NewComponentExporter(opts ...ExporterOption) (*ComponentExporter, error) {
	e := &ComponentExporter{keys: embeddedKeys}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		return nil, ErrLoggerNotSet
	}
	if e.registrar == nil {
		e.registrar = NewLogRegistrar(e.logger)
	}
	if e.compiler == nil {
		e.compiler = NewGoPluginCompiler(e.logger)
	}
	return e, nil
}

// Export runs the component export described by spec and returns the
// registration result.
//
// The steps run strictly in order: signing key acquisition, module creation,
// metadata application, base type selection, per-component wrapper generation
// (sequential, list order, all against the same module and base instance),
// persistence, and registration. A failure in key acquisition or in any
// generation step aborts the whole export before anything is written; a
// registration failure is reported to the caller while the already-persisted
// artifact stays on disk. There are no retries and no rollback.
func (e *ComponentExporter) Export(ctx context.Context, spec *ComponentExportSpec) (*RegistrationResult, error) {
	if spec == nil {
		return nil, ErrExportSpecNil
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	e.notify(ctx, EventTypeExportStarted, map[string]any{
		"application": spec.ApplicationName,
		"module":      spec.OutputModuleName,
		"components":  len(spec.Components),
	})

	// (a) Signing identity, from the embedded key resource. The resource
	// stream is released on every exit path before the export proceeds.
	signingKey, err := e.loadSigningKey()
	if err != nil {
		return nil, e.fail(ctx, spec, err)
	}

	// (b) Module container.
	module := NewModuleBuilder(spec.OutputModuleName)
	e.logger.Info("module container created", "module", module.Name())
	e.notify(ctx, EventTypeModuleCreated, map[string]any{"module": module.Name()})

	// (c) Module-level metadata.
	if err := applyExportMetadata(module, spec); err != nil {
		return nil, e.fail(ctx, spec, err)
	}
	e.notify(ctx, EventTypeMetadataApplied, map[string]any{"module": module.Name()})

	// (d) Base adapter type.
	base, err := e.selectBaseType(module, spec)
	if err != nil {
		return nil, e.fail(ctx, spec, err)
	}

	// (e) Per-component wrapper generation. Strictly sequential: every spec
	// mutates the one shared module.
	for i, component := range spec.Components {
		if err := component.GenerateWrapper(module, base, e.factory, spec.UseManagedResolver); err != nil {
			wrapped := fmt.Errorf("%w: component %d: %w", ErrWrapperGeneration, i, err)
			return nil, e.fail(ctx, spec, wrapped)
		}
		e.notify(ctx, EventTypeWrapperGenerated, map[string]any{
			"module":    module.Name(),
			"component": i,
		})
	}

	// (f) Persist next to the exporter's own location (or the configured
	// output directory), then sign.
	artifactPath, err := e.persistModule(ctx, module, spec, signingKey)
	if err != nil {
		return nil, e.fail(ctx, spec, err)
	}
	e.logger.Info("module persisted", "module", module.Name(), "path", artifactPath)
	e.notify(ctx, EventTypeModulePersisted, map[string]any{"module": module.Name(), "path": artifactPath})

	// (g) Registration descriptor with the fixed flag set.
	descriptor := RegistrationDescriptor{
		ApplicationName: spec.ApplicationName,
		ModuleFilePath:  artifactPath,
		Flags:           DefaultInstallFlags,
	}

	// (h) Submit to the transactional runtime. The artifact stays on disk
	// whatever the outcome.
	result, err := e.registrar.Register(ctx, descriptor)
	if err != nil {
		return nil, e.fail(ctx, spec, fmt.Errorf("%w: %w", ErrRegistrationFailed, err))
	}
	for _, warning := range result.Warnings {
		e.logger.Warn("runtime reported installation warning", "application", spec.ApplicationName, "warning", warning)
	}

	e.logger.Info("export registered",
		"application", spec.ApplicationName,
		"applicationID", result.ApplicationID,
		"created", result.Created)
	e.notify(ctx, EventTypeRegistrationDone, map[string]any{
		"application":   spec.ApplicationName,
		"applicationID": result.ApplicationID,
	})
	return result, nil
}

// selectBaseType returns the plain built-in adapter base, or synthesizes the
// managed base type into the module when the spec asks for it.
func (e *ComponentExporter) selectBaseType(module *ModuleBuilder, spec *ComponentExportSpec) (AdapterBase, error) {
	if !spec.UseManagedResolver {
		return PlainAdapterBase{}, nil
	}

	synthesizer := NewBaseTypeSynthesizer(e.logger, e.bindingOpts...)
	base, err := synthesizer.Synthesize(module)
	if err != nil {
		return nil, fmt.Errorf("synthesizing base type: %w", err)
	}
	e.notify(context.Background(), EventTypeBaseTypeSynthesized, map[string]any{
		"module": module.Name(),
		"type":   base.TypeName(),
	})
	return base, nil
}

// loadSigningKey opens the embedded key resource, reads and parses the
// signing key, and releases the stream before returning. A missing resource
// is fatal to the export, before any module is created.
func (e *ComponentExporter) loadSigningKey() (ed25519.PrivateKey, error) {
	stream, err := e.keys.Open(signingKeyResource)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrSigningKeyNotFound, signingKeyResource)
	}
	defer stream.Close()

	payload, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("reading signing key resource: %w", err)
	}

	block, _ := pem.Decode(payload)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrSigningKeyInvalid)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningKeyInvalid, err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected key type %T", ErrSigningKeyInvalid, parsed)
	}
	return key, nil
}

// persistModule renders the module's synthetic source unit, compiles it into
// the artifact, signs the artifact with the embedded key, and writes the
// companion context file when the spec carries context resources. It returns
// the artifact's absolute path.
//
// Persistence runs only after every generation step succeeded, so a failed
// export never leaves a partial artifact at the target path.
func (e *ComponentExporter) persistModule(ctx context.Context, module *ModuleBuilder, spec *ComponentExportSpec, key ed25519.PrivateKey) (string, error) {
	source, err := module.Render()
	if err != nil {
		return "", fmt.Errorf("rendering module source: %w", err)
	}

	dir, err := e.artifactDir()
	if err != nil {
		return "", err
	}
	artifactPath, err := filepath.Abs(filepath.Join(dir, module.TargetFile()))
	if err != nil {
		return "", fmt.Errorf("resolving artifact path: %w", err)
	}

	if err := e.compiler.Compile(ctx, module.Name(), source, artifactPath); err != nil {
		return "", err
	}

	artifact, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", fmt.Errorf("reading artifact for signing: %w", err)
	}
	signature := ed25519.Sign(key, artifact)
	if err := os.WriteFile(artifactPath+moduleSignatureSuffix, signature, 0o644); err != nil {
		return "", fmt.Errorf("writing module signature: %w", err)
	}

	if len(spec.ContextResources) > 0 {
		if err := writeCompanionContext(artifactPath, spec.ContextResources); err != nil {
			return "", err
		}
	}

	return artifactPath, nil
}

// artifactDir is the directory the artifact lands in: the configured output
// directory, or the directory containing the exporter's own executable.
func (e *ComponentExporter) artifactDir() (string, error) {
	if e.outputDir != "" {
		return e.outputDir, nil
	}
	return executingModuleDir()
}

// notify emits an export lifecycle event when a subject is attached.
func (e *ComponentExporter) notify(ctx context.Context, eventType string, data map[string]any) {
	if e.subject == nil {
		return
	}
	_ = e.subject.NotifyObservers(ctx, NewExportEvent(eventType, data, nil))
}

// fail logs the failure, emits the failure event, and returns the error for
// propagation to the caller.
func (e *ComponentExporter) fail(ctx context.Context, spec *ComponentExportSpec, err error) error {
	e.logger.Error("export failed", "application", spec.ApplicationName, "module", spec.OutputModuleName, "error", err)
	e.notify(ctx, EventTypeExportFailed, map[string]any{
		"application": spec.ApplicationName,
		"module":      spec.OutputModuleName,
		"error":       err.Error(),
	})
	return err
}
