package serviced

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ModuleCompiler turns a module's rendered synthetic source unit into the
// binary module artifact at outputPath. Compilation is the slow, blocking
// part of persistence; it is pluggable so the pipeline is testable without a
// build toolchain.
type ModuleCompiler interface {
	Compile(ctx context.Context, moduleName string, source []byte, outputPath string) error
}

// GoPluginCompiler compiles the synthetic source unit into a plugin object
// with the Go toolchain. Each compilation runs in a private scratch
// directory that is removed afterwards.
type GoPluginCompiler struct {
	logger Logger

	// GoTool is the go tool to invoke. Defaults to "go" from PATH.
	GoTool string
}

// NewGoPluginCompiler creates the default module compiler.
func NewGoPluginCompiler(logger Logger) *GoPluginCompiler {
	return &GoPluginCompiler{logger: logger, GoTool: "go"}
}

// Compile implements ModuleCompiler.
func (c *GoPluginCompiler) Compile(ctx context.Context, moduleName string, source []byte, outputPath string) error {
	scratch, err := os.MkdirTemp("", "serviced-export-*")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	goMod := fmt.Sprintf("module %s\n\ngo 1.26\n", moduleName)
	if err := os.WriteFile(filepath.Join(scratch, "go.mod"), []byte(goMod), 0o644); err != nil {
		return fmt.Errorf("writing scratch go.mod: %w", err)
	}
	if err := os.WriteFile(filepath.Join(scratch, "main.go"), source, 0o644); err != nil {
		return fmt.Errorf("writing synthetic source unit: %w", err)
	}

	// The synthetic unit may import published packages, such as the plain
	// adapter base. Resolve them into the scratch module before building.
	tidy := exec.CommandContext(ctx, c.GoTool, "mod", "tidy")
	tidy.Dir = scratch
	if out, err := tidy.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: module %s: resolving imports: %s", ErrCompilationFailed, moduleName, string(out))
	}

	cmd := exec.CommandContext(ctx, c.GoTool, "build", "-buildmode=plugin", "-o", outputPath, ".")
	cmd.Dir = scratch
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: module %s: %s", ErrCompilationFailed, moduleName, string(out))
	}

	c.logger.Debug("module compiled", "module", moduleName, "output", outputPath)
	return nil
}
