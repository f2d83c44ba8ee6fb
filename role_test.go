package serviced

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleDirective(t *testing.T) {
	testcases := []struct {
		name     string
		raw      string
		expected RoleDirective
	}{
		{
			name: "full directive",
			raw:  "Admins:Can manage application:true",
			expected: RoleDirective{
				Name:                "Admins",
				Description:         "Can manage application",
				AllowEveryoneAccess: true,
			},
		},
		{
			name:     "name only",
			raw:      "Users",
			expected: RoleDirective{Name: "Users"},
		},
		{
			name:     "name and description",
			raw:      "Operators:Day-to-day operations",
			expected: RoleDirective{Name: "Operators", Description: "Day-to-day operations"},
		},
		{
			name:     "segments are trimmed",
			raw:      "  Admins : Can manage application : true ",
			expected: RoleDirective{Name: "Admins", Description: "Can manage application", AllowEveryoneAccess: true},
		},
		{
			name:     "extra segments ignored",
			raw:      "Admins:desc:false:ignored",
			expected: RoleDirective{Name: "Admins", Description: "desc"},
		},
		{
			name:     "canonical boolean literal variants",
			raw:      "Admins:desc:TRUE",
			expected: RoleDirective{Name: "Admins", Description: "desc", AllowEveryoneAccess: true},
		},
		{
			name:     "empty third segment keeps default",
			raw:      "Admins:desc:",
			expected: RoleDirective{Name: "Admins", Description: "desc"},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			directive, err := ParseRoleDirective(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, *directive)
		})
	}
}

func TestParseRoleDirectiveErrors(t *testing.T) {
	t.Run("bad boolean literal", func(t *testing.T) {
		_, err := ParseRoleDirective("Admins:desc:yes")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidRoleDirective)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := ParseRoleDirective(":desc:true")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyRoleDirective)
	})
}

func TestRefreshRoles(t *testing.T) {
	spec := &ComponentExportSpec{}
	spec.AddRole("Admins:Can manage application:true")
	spec.AddRole(&RoleDirective{Name: "Auditors", Description: "Read only"})
	spec.AddRole("Users")

	require.NoError(t, RefreshRoles(spec))
	require.Len(t, spec.Roles, 3)

	admins, ok := spec.Roles[0].(*RoleDirective)
	require.True(t, ok)
	assert.Equal(t, "Admins", admins.Name)
	assert.True(t, admins.AllowEveryoneAccess)

	auditors, ok := spec.Roles[1].(*RoleDirective)
	require.True(t, ok)
	assert.Equal(t, "Auditors", auditors.Name)

	users, ok := spec.Roles[2].(*RoleDirective)
	require.True(t, ok)
	assert.Equal(t, "Users", users.Name)
	assert.Empty(t, users.Description)
	assert.False(t, users.AllowEveryoneAccess)
}

func TestRefreshRolesPassesDirectivesThroughUnchanged(t *testing.T) {
	directive := &RoleDirective{Name: "Admins", AllowEveryoneAccess: true}
	spec := &ComponentExportSpec{Roles: []any{directive}}

	require.NoError(t, RefreshRoles(spec))
	assert.Same(t, directive, spec.Roles[0].(*RoleDirective))
}

func TestRefreshRolesAtomicOnFailure(t *testing.T) {
	spec := &ComponentExportSpec{}
	spec.AddRole("Admins:ok:true")
	spec.AddRole("Broken:desc:notabool")

	err := RefreshRoles(spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRoleDirective)

	// The caller's list is untouched: no partially-converted entries.
	assert.Equal(t, "Admins:ok:true", spec.Roles[0])
	assert.Equal(t, "Broken:desc:notabool", spec.Roles[1])
}

func TestRefreshRolesRejectsUnexpectedEntryTypes(t *testing.T) {
	spec := &ComponentExportSpec{Roles: []any{42}}
	err := RefreshRoles(spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedRoleEntry)
}

func TestRefreshRolesNilSpec(t *testing.T) {
	assert.ErrorIs(t, RefreshRoles(nil), ErrExportSpecNil)
}
