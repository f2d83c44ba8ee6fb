package serviced

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"
)

// ExportPipelineBDDTestContext holds state for export pipeline BDD tests
type ExportPipelineBDDTestContext struct {
	exporter  *ComponentExporter
	registrar *stubRegistrar
	compiler  *fakeCompiler
	outputDir string
	tempDirs  []string

	spec     *ComponentExportSpec
	module   *ModuleBuilder
	result   *RegistrationResult
	exported error
}

func (ctx *ExportPipelineBDDTestContext) cleanup() {
	for _, dir := range ctx.tempDirs {
		os.RemoveAll(dir)
	}
}

func (ctx *ExportPipelineBDDTestContext) aComponentExporterWithAStubRuntime() error {
	dir, err := os.MkdirTemp("", "export-bdd-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	ctx.tempDirs = append(ctx.tempDirs, dir)
	ctx.outputDir = dir
	ctx.spec = nil
	ctx.module = nil
	ctx.result = nil
	ctx.exported = nil

	ctx.registrar = &stubRegistrar{}
	ctx.compiler = &fakeCompiler{}
	ctx.exporter, err = NewComponentExporter(
		WithLogger(&bddLogger{}),
		WithRegistrar(ctx.registrar),
		WithCompiler(ctx.compiler),
		WithOutputDir(dir),
		WithResolverBindingOptions(WithBindingLoader(&stubLoader{})),
	)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) anExportSpecForApplicationWithOutputModule(application, module string) error {
	ctx.spec = &ComponentExportSpec{
		ApplicationName:  application,
		OutputModuleName: module,
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theSpecHasComponents(names string) error {
	if ctx.spec == nil {
		return errors.New("no export spec prepared")
	}
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		inner := &countingWrapperSpec{name: name, service: strings.ToLower(name)}
		if ctx.module == nil && len(ctx.spec.Components) == 0 {
			ctx.spec.AddComponent(&moduleCapturingSpec{inner: inner, sink: &ctx.module})
			continue
		}
		ctx.spec.AddComponent(inner)
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theSpecUsesTheManagedResolver() error {
	ctx.spec.UseManagedResolver = true
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theSpecHasTheRawRole(raw string) error {
	ctx.spec.AddRole(raw)
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theSpecHasAComponentThatFailsToGenerate() error {
	ctx.spec.AddComponent(&countingWrapperSpec{name: "Broken", service: "broken", err: errors.New("generation refused")})
	return nil
}

func (ctx *ExportPipelineBDDTestContext) iRunTheExport() error {
	ctx.result, ctx.exported = ctx.exporter.Export(context.Background(), ctx.spec)
	return nil
}

func (ctx *ExportPipelineBDDTestContext) iRefreshTheRolesAndRunTheExport() error {
	if err := RefreshRoles(ctx.spec); err != nil {
		return fmt.Errorf("failed to refresh roles: %w", err)
	}
	return ctx.iRunTheExport()
}

func (ctx *ExportPipelineBDDTestContext) iRunTheExportTwice() error {
	if err := ctx.iRunTheExport(); err != nil {
		return err
	}
	if ctx.exported != nil {
		return fmt.Errorf("first export failed: %w", ctx.exported)
	}
	// The second run needs fresh component generators; a wrapper spec is
	// consumed per export.
	second := &ComponentExportSpec{
		ApplicationName:  ctx.spec.ApplicationName,
		OutputModuleName: ctx.spec.OutputModuleName,
	}
	for _, component := range ctx.spec.Components {
		if counting, ok := component.(*countingWrapperSpec); ok {
			second.AddComponent(&countingWrapperSpec{name: counting.name, service: counting.service})
			continue
		}
		if capturing, ok := component.(*moduleCapturingSpec); ok {
			if inner, ok := capturing.inner.(*countingWrapperSpec); ok {
				second.AddComponent(&countingWrapperSpec{name: inner.name, service: inner.service})
				continue
			}
		}
		second.AddComponent(component)
	}
	ctx.result, ctx.exported = ctx.exporter.Export(context.Background(), second)
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theExportSucceeds() error {
	if ctx.exported != nil {
		return fmt.Errorf("expected export to succeed, got: %w", ctx.exported)
	}
	if ctx.result == nil {
		return errors.New("expected a registration result")
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theExportFailsWithAWrapperGenerationError() error {
	if ctx.exported == nil {
		return errors.New("expected export to fail")
	}
	if !errors.Is(ctx.exported, ErrWrapperGeneration) {
		return fmt.Errorf("expected a wrapper generation error, got: %w", ctx.exported)
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theModuleContainsWrapperTypesRootedAtThePlainBaseType(count int) error {
	return ctx.assertWrapperTypes(count, PlainBaseTypeName)
}

func (ctx *ExportPipelineBDDTestContext) theModuleContainsWrapperTypesRootedAtTheManagedBaseType(count int) error {
	return ctx.assertWrapperTypes(count, ManagedBaseTypeName)
}

func (ctx *ExportPipelineBDDTestContext) assertWrapperTypes(count int, baseType string) error {
	if ctx.module == nil {
		return errors.New("no module was captured")
	}
	wrappers := ctx.module.WrapperTypes()
	if len(wrappers) != count {
		return fmt.Errorf("expected %d wrapper types, got %d", count, len(wrappers))
	}
	for _, w := range wrappers {
		if w.BaseType != baseType {
			return fmt.Errorf("wrapper %q rooted at %q, expected %q", w.Name, w.BaseType, baseType)
		}
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) noBaseTypeIsSynthesized() error {
	if n := len(ctx.module.TypesOfKind(TypeKindBase)); n != 0 {
		return fmt.Errorf("expected no synthesized base type, got %d", n)
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) exactlyOneBaseTypeAndOneCallbackTypeAreSynthesized() error {
	if n := len(ctx.module.TypesOfKind(TypeKindBase)); n != 1 {
		return fmt.Errorf("expected 1 synthesized base type, got %d", n)
	}
	if n := len(ctx.module.TypesOfKind(TypeKindCallback)); n != 1 {
		return fmt.Errorf("expected 1 callback type, got %d", n)
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theModuleArtifactAndItsSignatureExist() error {
	artifact := filepath.Join(ctx.outputDir, ctx.spec.OutputModuleName+ModuleSuffix)
	if _, err := os.Stat(artifact); err != nil {
		return fmt.Errorf("module artifact missing: %w", err)
	}
	if _, err := os.Stat(artifact + moduleSignatureSuffix); err != nil {
		return fmt.Errorf("module signature missing: %w", err)
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) noModuleArtifactIsWritten() error {
	artifact := filepath.Join(ctx.outputDir, ctx.spec.OutputModuleName+ModuleSuffix)
	if _, err := os.Stat(artifact); err == nil {
		return fmt.Errorf("expected no artifact at %q", artifact)
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theModuleMetadataCarriesTheRoleWithEveryoneAccess(name string) error {
	if ctx.module == nil {
		return errors.New("no module was captured")
	}
	directive, ok := ctx.module.Metadata().Role(name)
	if !ok {
		return fmt.Errorf("role %q not found in module metadata", name)
	}
	if !directive.AllowEveryoneAccess {
		return fmt.Errorf("role %q does not allow everyone access", name)
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theRuntimeReceivedRegistrationsFor(count int, application string) error {
	if len(ctx.registrar.calls) != count {
		return fmt.Errorf("expected %d registrations, got %d", count, len(ctx.registrar.calls))
	}
	for _, call := range ctx.registrar.calls {
		if call.ApplicationName != application {
			return fmt.Errorf("registration for %q, expected %q", call.ApplicationName, application)
		}
		if call.Flags != DefaultInstallFlags {
			return fmt.Errorf("registration carried flags %s, expected %s", call.Flags, DefaultInstallFlags)
		}
	}
	return nil
}

func (ctx *ExportPipelineBDDTestContext) theRuntimeReceivedNoRegistrations() error {
	if len(ctx.registrar.calls) != 0 {
		return fmt.Errorf("expected no registrations, got %d", len(ctx.registrar.calls))
	}
	return nil
}

// bddLogger discards output; BDD assertions go through step results.
type bddLogger struct{}

func (bddLogger) Info(string, ...any)  {}
func (bddLogger) Error(string, ...any) {}
func (bddLogger) Warn(string, ...any)  {}
func (bddLogger) Debug(string, ...any) {}

// InitializeExportPipelineScenario registers the export pipeline steps.
func InitializeExportPipelineScenario(ctx *godog.ScenarioContext) {
	bddCtx := &ExportPipelineBDDTestContext{}

	ctx.After(func(c context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		bddCtx.cleanup()
		return c, nil
	})

	ctx.Step(`^a component exporter with a stub runtime$`, bddCtx.aComponentExporterWithAStubRuntime)
	ctx.Step(`^an export spec for application "([^"]*)" with output module "([^"]*)"$`, bddCtx.anExportSpecForApplicationWithOutputModule)
	ctx.Step(`^the spec has components "([^"]*)"$`, bddCtx.theSpecHasComponents)
	ctx.Step(`^the spec uses the managed resolver$`, bddCtx.theSpecUsesTheManagedResolver)
	ctx.Step(`^the spec has the raw role "([^"]*)"$`, bddCtx.theSpecHasTheRawRole)
	ctx.Step(`^the spec has a component that fails to generate$`, bddCtx.theSpecHasAComponentThatFailsToGenerate)
	ctx.Step(`^I run the export$`, bddCtx.iRunTheExport)
	ctx.Step(`^I refresh the roles and run the export$`, bddCtx.iRefreshTheRolesAndRunTheExport)
	ctx.Step(`^I run the export twice$`, bddCtx.iRunTheExportTwice)
	ctx.Step(`^the export succeeds$`, bddCtx.theExportSucceeds)
	ctx.Step(`^the export fails with a wrapper generation error$`, bddCtx.theExportFailsWithAWrapperGenerationError)
	ctx.Step(`^the module contains (\d+) wrapper types rooted at the plain base type$`, bddCtx.theModuleContainsWrapperTypesRootedAtThePlainBaseType)
	ctx.Step(`^the module contains (\d+) wrapper types rooted at the managed base type$`, bddCtx.theModuleContainsWrapperTypesRootedAtTheManagedBaseType)
	ctx.Step(`^no base type is synthesized$`, bddCtx.noBaseTypeIsSynthesized)
	ctx.Step(`^exactly one base type and one callback type are synthesized$`, bddCtx.exactlyOneBaseTypeAndOneCallbackTypeAreSynthesized)
	ctx.Step(`^the module artifact and its signature exist$`, bddCtx.theModuleArtifactAndItsSignatureExist)
	ctx.Step(`^no module artifact is written$`, bddCtx.noModuleArtifactIsWritten)
	ctx.Step(`^the module metadata carries the role "([^"]*)" with everyone access$`, bddCtx.theModuleMetadataCarriesTheRoleWithEveryoneAccess)
	ctx.Step(`^the runtime received (\d+) registrations? for "([^"]*)"$`, bddCtx.theRuntimeReceivedRegistrationsFor)
	ctx.Step(`^the runtime received no registrations$`, bddCtx.theRuntimeReceivedNoRegistrations)
}

// Test runner
func TestExportPipelineBDDFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeExportPipelineScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/export_pipeline.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
