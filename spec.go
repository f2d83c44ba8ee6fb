package serviced

import (
	"fmt"

	"github.com/google/uuid"
)

// ActivationMode controls how the transactional runtime activates the
// exported application.
type ActivationMode int

const (
	// ActivationModeLibrary activates components in the caller's process.
	// This is the default.
	ActivationModeLibrary ActivationMode = iota

	// ActivationModeServer activates components in a dedicated server process
	// managed by the transactional runtime.
	ActivationModeServer
)

// String returns the mode's canonical name.
func (m ActivationMode) String() string {
	switch m {
	case ActivationModeServer:
		return "server"
	default:
		return "library"
	}
}

// ComponentExportSpec is the export request. It is typically constructed by a
// configuration loader, mutated freely before export, and then consumed by
// ComponentExporter.Export.
//
// A spec may be exported more than once, but re-export is not idempotent: it
// overwrites the previous artifact and triggers a second registration with
// the transactional runtime.
type ComponentExportSpec struct {
	// ApplicationName is the name the application is registered under in the
	// transactional runtime. Required.
	ApplicationName string

	// ApplicationID optionally pins the application's GUID in the runtime.
	// When set it must be a valid GUID string.
	ApplicationID string

	// ActivationMode selects library or server activation. Defaults to
	// ActivationModeLibrary.
	ActivationMode ActivationMode

	// Description is an optional human-readable application description.
	// When set it is applied to the module twice, as both the generic
	// description entry and the module-description entry.
	Description string

	// AccessControlPolicy is an opaque access-control policy object applied
	// to the module metadata when non-nil. The exporter does not interpret it.
	AccessControlPolicy any

	// QueuingPolicy is an opaque queuing policy object applied to the module
	// metadata when non-nil. The exporter does not interpret it.
	QueuingPolicy any

	// Roles is the ordered role list. Entries are either *RoleDirective
	// values or raw strings in the compact "name[:description[:allow]]"
	// syntax. RefreshRoles must run before Export when raw strings may be
	// present; Export never re-parses.
	Roles []any

	// OutputModuleName names the binary module and is also the artifact's
	// file stem. Required.
	OutputModuleName string

	// UseManagedResolver selects the synthesized base adapter type with the
	// lazily bound resolver capability instead of the runtime's plain
	// built-in base type.
	UseManagedResolver bool

	// Components is the ordered list of per-component wrapper generators.
	// Each is invoked exactly once per export, in list order, against the
	// same module and base type instance.
	Components []ComponentWrapperSpec

	// ContextResources optionally lists resource references written to the
	// companion context file beside the artifact. Generated wrappers load
	// that file lazily; the exporter only produces it.
	ContextResources []string
}

// AddRole appends a role entry, either a *RoleDirective or a raw string.
func (s *ComponentExportSpec) AddRole(entry any) {
	s.Roles = append(s.Roles, entry)
}

// AddComponent appends a component wrapper spec to the export.
func (s *ComponentExportSpec) AddComponent(component ComponentWrapperSpec) {
	s.Components = append(s.Components, component)
}

// Validate checks the export preconditions that do not require I/O:
// the output module name and application name are set, the application id
// (when present) is a valid GUID, and no component entry is nil.
func (s *ComponentExportSpec) Validate() error {
	if s.OutputModuleName == "" {
		return ErrOutputModuleNameRequired
	}
	if s.ApplicationName == "" {
		return ErrApplicationNameRequired
	}
	if s.ApplicationID != "" {
		if _, err := uuid.Parse(s.ApplicationID); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidApplicationID, s.ApplicationID)
		}
	}
	for i, component := range s.Components {
		if component == nil {
			return fmt.Errorf("%w: component %d", ErrNilWrapperSpec, i)
		}
	}
	return nil
}
