package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lufespi/gestor-academico/internal/role"
)

func TestHomeForIsTotalOverRoles(t *testing.T) {
	for _, r := range role.All() {
		home, ok := HomeFor(r)
		require.True(t, ok, "role %s has no home", r)

		route, found := Lookup(home)
		require.True(t, found, "home %s missing from route table", home)
		assert.Equal(t, r, route.RequiredRole, "home of %s must be pinned to it", r)
	}

	_, ok := HomeFor(role.Role("admin"))
	assert.False(t, ok)
	_, ok = HomeFor(role.None)
	assert.False(t, ok)
}

func TestMenuEntriesPointAtPermittedRoutes(t *testing.T) {
	for _, r := range role.All() {
		menu := MenuFor(r)
		require.NotEmpty(t, menu)
		permitted := Permitted(r)
		for _, item := range menu {
			assert.Contains(t, permitted, item.Path, "menu of %s links to %s", r, item.Path)
		}
	}
}

func TestMenuForUnknownRoleIsEmpty(t *testing.T) {
	assert.Empty(t, MenuFor(role.Role("admin")))
	assert.Empty(t, MenuFor(role.None))
}

func TestMenuForReturnsCopy(t *testing.T) {
	menu := MenuFor(role.Student)
	menu[0].Path = "/students"
	assert.Equal(t, "/dashboard", MenuFor(role.Student)[0].Path)
}

func TestPermittedHasNoRoleInheritance(t *testing.T) {
	coordinator := Permitted(role.Coordinator)
	assert.NotContains(t, coordinator, "/advisees")
	assert.NotContains(t, coordinator, "/professor/dashboard")
	assert.NotContains(t, coordinator, "/student/dashboard")
	assert.Contains(t, coordinator, "/students")

	student := Permitted(role.Student)
	assert.NotContains(t, student, "/students")
	assert.Contains(t, student, "/deadlines")

	assert.Nil(t, Permitted(role.Role("admin")))
}

func TestLookupNormalizes(t *testing.T) {
	cases := map[string]string{
		"/students/":       "/students",
		"/students?page=2": "/students",
		"students":         "/students",
		"":                 "/",
		"/review-panels#x": "/review-panels",
	}
	for input, want := range cases {
		route, ok := Lookup(input)
		require.True(t, ok, "lookup %q", input)
		assert.Equal(t, want, route.Path)
	}

	_, ok := Lookup("/admin")
	assert.False(t, ok)

	auth, ok := Lookup(AuthPath)
	require.True(t, ok)
	assert.True(t, auth.Public)
}
