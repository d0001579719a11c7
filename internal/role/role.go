// Package role defines the closed set of user roles.
package role

import "strings"

type Role string

const (
	Coordinator Role = "coordinator"
	Professor   Role = "professor"
	Student     Role = "student"
)

// None marks a route that any authenticated user may open.
const None Role = ""

func All() []Role {
	return []Role{Coordinator, Professor, Student}
}

// Parse accepts the wire form of a role, case-insensitively.
func Parse(value string) (Role, bool) {
	r := Role(strings.TrimSpace(strings.ToLower(value)))
	if !r.Valid() {
		return None, false
	}
	return r, true
}

func (r Role) Valid() bool {
	switch r {
	case Coordinator, Professor, Student:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

func (r Role) Label() string {
	switch r {
	case Coordinator:
		return "Coordenador"
	case Professor:
		return "Professor"
	case Student:
		return "Aluno"
	default:
		return ""
	}
}
