// Package nav holds the static route table, the home path of every role and
// the sidebar menus.
//
// Menus are presentation data. Hiding an entry never grants or removes access;
// the gate package and the backend policy are the enforcement points.
package nav

import (
	"strings"

	"github.com/lufespi/gestor-academico/internal/role"
)

const AuthPath = "/auth"

type Route struct {
	Path         string
	RequiredRole role.Role
	Public       bool
}

type MenuItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon"`
}

var routes = []Route{
	{Path: AuthPath, Public: true},
	{Path: "/"},
	{Path: "/dashboard"},
	{Path: "/coordinator/dashboard", RequiredRole: role.Coordinator},
	{Path: "/professor/dashboard", RequiredRole: role.Professor},
	{Path: "/student/dashboard", RequiredRole: role.Student},
	{Path: "/students", RequiredRole: role.Coordinator},
	{Path: "/professors", RequiredRole: role.Coordinator},
	{Path: "/reports", RequiredRole: role.Coordinator},
	{Path: "/advisees", RequiredRole: role.Professor},
	{Path: "/assignments"},
	{Path: "/review-panels"},
	{Path: "/grading"},
	{Path: "/meetings"},
	{Path: "/my-project"},
	{Path: "/deadlines"},
	{Path: "/calendar"},
}

var routeIndex = func() map[string]Route {
	index := make(map[string]Route, len(routes))
	for _, r := range routes {
		index[r.Path] = r
	}
	return index
}()

var homes = map[role.Role]string{
	role.Coordinator: "/coordinator/dashboard",
	role.Professor:   "/professor/dashboard",
	role.Student:     "/student/dashboard",
}

var menus = map[role.Role][]MenuItem{
	role.Coordinator: {
		{Label: "Painel", Path: "/dashboard", Icon: "home"},
		{Label: "Alunos", Path: "/students", Icon: "users"},
		{Label: "Professores", Path: "/professors", Icon: "graduation-cap"},
		{Label: "Orientações", Path: "/assignments", Icon: "user-check"},
		{Label: "Cronograma", Path: "/deadlines", Icon: "calendar"},
		{Label: "Bancas", Path: "/review-panels", Icon: "file-text"},
		{Label: "Relatórios", Path: "/reports", Icon: "bar-chart"},
	},
	role.Professor: {
		{Label: "Painel", Path: "/dashboard", Icon: "home"},
		{Label: "Meus Orientandos", Path: "/advisees", Icon: "users"},
		{Label: "Avaliações", Path: "/grading", Icon: "clipboard-check"},
		{Label: "Calendário", Path: "/calendar", Icon: "calendar"},
	},
	role.Student: {
		{Label: "Painel", Path: "/dashboard", Icon: "home"},
		{Label: "Meu Projeto", Path: "/my-project", Icon: "book-open"},
		{Label: "Reuniões", Path: "/meetings", Icon: "message-square"},
		{Label: "Prazos", Path: "/deadlines", Icon: "clock"},
	},
}

// HomeFor returns the landing path of r. ok is false for a role with no home.
func HomeFor(r role.Role) (string, bool) {
	path, ok := homes[r]
	return path, ok
}

// MenuFor returns a copy of the ordered menu of r. Unknown roles get no menu.
func MenuFor(r role.Role) []MenuItem {
	items := menus[r]
	out := make([]MenuItem, len(items))
	copy(out, items)
	return out
}

func Lookup(path string) (Route, bool) {
	r, ok := routeIndex[Normalize(path)]
	return r, ok
}

// Normalize strips query strings and trailing slashes so "/students/" and
// "/students?page=2" match "/students".
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Permitted lists the non-public paths r may open, in route table order.
func Permitted(r role.Role) []string {
	if !r.Valid() {
		return nil
	}
	var out []string
	for _, route := range routes {
		if route.Public {
			continue
		}
		if route.RequiredRole == role.None || route.RequiredRole == r {
			out = append(out, route.Path)
		}
	}
	return out
}

func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}
