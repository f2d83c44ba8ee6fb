package serviced

import (
	"fmt"
	"strconv"
	"strings"
)

// RoleDirective is a named security-role assignment carried on the exported
// module for the transactional runtime to interpret.
type RoleDirective struct {
	// Name is the role name. Required.
	Name string

	// Description is an optional human-readable description of the role.
	// Empty means absent.
	Description string

	// AllowEveryoneAccess grants the role to everyone. Defaults to false.
	AllowEveryoneAccess bool
}

// NewRoleDirective creates a role directive with the given name and defaults
// for the optional fields.
func NewRoleDirective(name string) *RoleDirective {
	return &RoleDirective{Name: name}
}

// String renders the directive back into the compact raw syntax.
func (r *RoleDirective) String() string {
	return fmt.Sprintf("%s:%s:%t", r.Name, r.Description, r.AllowEveryoneAccess)
}

// ParseRoleDirective parses the compact raw role syntax
// "name[:description[:allowEveryoneAccess]]". Segments are split on ':' and
// trimmed of surrounding whitespace. The third segment must be one of Go's
// canonical boolean literals (per strconv.ParseBool); anything else fails
// with an error wrapping ErrInvalidRoleDirective. Segments beyond the third
// are ignored.
func ParseRoleDirective(raw string) (*RoleDirective, error) {
	segments := strings.Split(raw, ":")
	for i, segment := range segments {
		segments[i] = strings.TrimSpace(segment)
	}

	if segments[0] == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyRoleDirective, raw)
	}

	directive := &RoleDirective{Name: segments[0]}
	if len(segments) > 1 {
		directive.Description = segments[1]
	}
	if len(segments) > 2 && segments[2] != "" {
		allow, err := strconv.ParseBool(segments[2])
		if err != nil {
			return nil, fmt.Errorf("%w: bad boolean literal %q in %q", ErrInvalidRoleDirective, segments[2], raw)
		}
		directive.AllowEveryoneAccess = allow
	}
	return directive, nil
}

// RefreshRoles normalizes the spec's role list so that every entry is a
// structured *RoleDirective. Entries that are already directives pass through
// unchanged; raw string entries are replaced by their parsed form.
//
// The replacement is atomic: a new normalized list is built first and the
// spec's list is swapped only once every entry parsed. On failure the caller's
// original list is left untouched, so a mid-refresh parse error never leaves a
// partially-converted list visible.
//
// RefreshRoles must run before Export whenever the role list may contain raw
// strings; Export itself never re-parses.
func RefreshRoles(spec *ComponentExportSpec) error {
	if spec == nil {
		return ErrExportSpecNil
	}

	refreshed := make([]any, len(spec.Roles))
	for i, entry := range spec.Roles {
		switch role := entry.(type) {
		case *RoleDirective:
			refreshed[i] = role
		case RoleDirective:
			refreshed[i] = &role
		case string:
			directive, err := ParseRoleDirective(role)
			if err != nil {
				return fmt.Errorf("refreshing role %d: %w", i, err)
			}
			refreshed[i] = directive
		default:
			return fmt.Errorf("%w: entry %d has type %T", ErrUnexpectedRoleEntry, i, entry)
		}
	}

	spec.Roles = refreshed
	return nil
}
