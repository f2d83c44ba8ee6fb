package serviced

import (
	"context"
	"strings"
)

// InstallFlag is a bit in the fixed install flag set submitted with every
// registration.
type InstallFlag uint

const (
	// InstallReportWarnings makes the runtime report installation warnings
	// without treating them as fatal.
	InstallReportWarnings InstallFlag = 1 << iota

	// InstallFindOrCreateApplication creates the application when no
	// application of the given name exists yet.
	InstallFindOrCreateApplication

	// InstallReconfigureExisting reconfigures an existing application of
	// the same name in place: its settings for this module are overwritten,
	// not merged with a prior run's settings.
	InstallReconfigureExisting
)

// DefaultInstallFlags is the fixed flag set used by every export: all three
// flags, always.
const DefaultInstallFlags = InstallReportWarnings | InstallFindOrCreateApplication | InstallReconfigureExisting

// Has reports whether the flag set contains the given flag.
func (f InstallFlag) Has(flag InstallFlag) bool { return f&flag != 0 }

// String renders the flag set as a comma-separated list.
func (f InstallFlag) String() string {
	var names []string
	if f.Has(InstallReportWarnings) {
		names = append(names, "ReportWarnings")
	}
	if f.Has(InstallFindOrCreateApplication) {
		names = append(names, "FindOrCreateApplication")
	}
	if f.Has(InstallReconfigureExisting) {
		names = append(names, "ReconfigureExisting")
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ",")
}

// RegistrationDescriptor is the registration request submitted to the
// transactional runtime after the module is persisted.
type RegistrationDescriptor struct {
	// ApplicationName is the name to register or reconfigure.
	ApplicationName string `json:"applicationName"`

	// ModuleFilePath is the persisted module's absolute path.
	ModuleFilePath string `json:"moduleFilePath"`

	// Flags is the install flag set. Always DefaultInstallFlags for exports
	// produced by this package.
	Flags InstallFlag `json:"flags"`
}

// RegistrationResult is the outcome of a runtime registration.
type RegistrationResult struct {
	// ApplicationID is the GUID the runtime assigned or kept for the
	// application.
	ApplicationID string `json:"applicationID"`

	// Created reports whether the application was newly created rather
	// than reconfigured in place.
	Created bool `json:"created"`

	// Warnings lists non-fatal installation warnings reported by the
	// runtime.
	Warnings []string `json:"warnings,omitempty"`
}

// RuntimeRegistrar is the external contract to the transactional runtime.
// Register accepts exactly one descriptor per call and performs a real,
// non-rollback-able, system-wide installation action. The exporter performs
// no retries and no cleanup around this call.
type RuntimeRegistrar interface {
	Register(ctx context.Context, descriptor RegistrationDescriptor) (*RegistrationResult, error)
}

// RegistrarFunc adapts a function to the RuntimeRegistrar interface.
type RegistrarFunc func(ctx context.Context, descriptor RegistrationDescriptor) (*RegistrationResult, error)

// Register implements RuntimeRegistrar by calling the function.
func (f RegistrarFunc) Register(ctx context.Context, descriptor RegistrationDescriptor) (*RegistrationResult, error) {
	return f(ctx, descriptor)
}

// LogRegistrar is a registrar for development and dry runs: it logs the
// descriptor and acknowledges without touching any runtime.
type LogRegistrar struct {
	logger Logger
}

// NewLogRegistrar creates a LogRegistrar.
func NewLogRegistrar(logger Logger) *LogRegistrar {
	return &LogRegistrar{logger: logger}
}

// Register implements RuntimeRegistrar.
func (r *LogRegistrar) Register(_ context.Context, descriptor RegistrationDescriptor) (*RegistrationResult, error) {
	r.logger.Info("dry-run registration",
		"application", descriptor.ApplicationName,
		"module", descriptor.ModuleFilePath,
		"flags", descriptor.Flags.String())
	return &RegistrationResult{}, nil
}
