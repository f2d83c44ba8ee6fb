package serviced

import (
	"errors"
)

// Exporter errors
var (
	// Export preconditions
	ErrOutputModuleNameRequired = errors.New("output module name is required")
	ErrApplicationNameRequired  = errors.New("application name is required")
	ErrInvalidApplicationID     = errors.New("application id is not a valid GUID")
	ErrLoggerNotSet             = errors.New("logger not set")
	ErrExportSpecNil            = errors.New("export spec is nil")

	// Signing key resource errors
	ErrSigningKeyNotFound = errors.New("embedded signing key resource not found")
	ErrSigningKeyInvalid  = errors.New("embedded signing key resource is not a valid key")

	// Role directive errors
	ErrInvalidRoleDirective = errors.New("invalid role directive")
	ErrEmptyRoleDirective   = errors.New("role directive has no name")
	ErrUnexpectedRoleEntry  = errors.New("role entry is neither a directive nor a string")
	ErrRolesNotRefreshed    = errors.New("roles contain unparsed raw entries")

	// Module building errors
	ErrTypeAlreadyDefined = errors.New("type already defined in module")
	ErrTypeNameRequired   = errors.New("type name is required")
	ErrModuleEmptySource  = errors.New("module rendered no source")

	// Wrapper generation errors
	ErrWrapperGeneration = errors.New("wrapper generation failed")
	ErrNilWrapperSpec    = errors.New("component wrapper spec is nil")

	// Resolver binding errors
	ErrResolverUnbound         = errors.New("resolver capability is unbound")
	ErrResolverSymbolMissing   = errors.New("resolver provider symbol not found in companion module")
	ErrResolverShapeInvalid    = errors.New("resolver provider does not expose a usable resolve operation")
	ErrCompanionModuleNotFound = errors.New("companion module could not be loaded")

	// Registration errors
	ErrRegistrationFailed = errors.New("runtime registration failed")

	// Compilation errors
	ErrCompilationFailed = errors.New("module compilation failed")

	// Config loader errors
	ErrUnsupportedConfigFormat = errors.New("unsupported export config format")
	ErrComponentBuilderNil     = errors.New("component builder is nil")
)
