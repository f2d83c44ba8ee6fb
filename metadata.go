package serviced

import (
	"fmt"
	"strings"
)

// Metadata keys used by the export pipeline. The module metadata is a flat
// bag, not an ordered list; the transactional runtime interprets the values.
const (
	MetadataApplicationName   = "applicationName"
	MetadataApplicationID     = "applicationID"
	MetadataActivationMode    = "activationMode"
	MetadataDescription       = "description"
	MetadataModuleDescription = "moduleDescription"
	MetadataAccessControl     = "accessControlPolicy"
	MetadataQueuing           = "queuingPolicy"

	// metadataRolePrefix prefixes one entry per role directive.
	metadataRolePrefix = "role:"
)

// MetadataBag is the flat metadata bag attached to a module under
// construction.
type MetadataBag map[string]any

// Role returns the role directive stored under the given role name, if any.
func (b MetadataBag) Role(name string) (*RoleDirective, bool) {
	directive, ok := b[metadataRolePrefix+name].(*RoleDirective)
	return directive, ok
}

// Roles returns every role directive in the bag.
func (b MetadataBag) Roles() []*RoleDirective {
	var roles []*RoleDirective
	for key, value := range b {
		if !strings.HasPrefix(key, metadataRolePrefix) {
			continue
		}
		if directive, ok := value.(*RoleDirective); ok {
			roles = append(roles, directive)
		}
	}
	return roles
}

// applyExportMetadata attaches the spec's module-level metadata to the module
// under construction.
//
// Application name and activation mode are applied unconditionally. The
// application id, description, access-control policy, and queuing policy are
// applied only when present, each exactly once; the description is applied as
// two separate entries (generic description and module description) carrying
// the same value. Every role directive yields one entry keyed by the role's
// name and carrying the full directive for the runtime to interpret.
//
// The role list must already be normalized: a raw string entry here means
// RefreshRoles was skipped, which is an error rather than a silent re-parse.
func applyExportMetadata(module *ModuleBuilder, spec *ComponentExportSpec) error {
	bag := module.Metadata()

	bag[MetadataApplicationName] = spec.ApplicationName
	bag[MetadataActivationMode] = spec.ActivationMode.String()

	if spec.ApplicationID != "" {
		bag[MetadataApplicationID] = spec.ApplicationID
	}
	if spec.Description != "" {
		bag[MetadataDescription] = spec.Description
		bag[MetadataModuleDescription] = spec.Description
	}
	if spec.AccessControlPolicy != nil {
		bag[MetadataAccessControl] = spec.AccessControlPolicy
	}
	if spec.QueuingPolicy != nil {
		bag[MetadataQueuing] = spec.QueuingPolicy
	}

	for i, entry := range spec.Roles {
		directive, ok := entry.(*RoleDirective)
		if !ok {
			return fmt.Errorf("%w: entry %d has type %T, run RefreshRoles before export", ErrRolesNotRefreshed, i, entry)
		}
		bag[metadataRolePrefix+directive.Name] = directive
	}

	return nil
}
