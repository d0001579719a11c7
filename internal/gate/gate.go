// Package gate decides what happens to a single navigation attempt.
//
// Decide is a pure function of a session snapshot and the route requirement.
// It is a user-experience layer only: every backend query enforces its own
// policy, so a wrong decision here can hide or show a page but never leak data.
package gate

import (
	"github.com/lufespi/gestor-academico/internal/nav"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/session"
)

type Outcome string

const (
	Loading      Outcome = "loading"
	RedirectAuth Outcome = "redirect_auth"
	RedirectHome Outcome = "redirect_home"
	Allow        Outcome = "allow"
	NotFound     Outcome = "not_found"
)

type Decision struct {
	Outcome Outcome `json:"outcome"`
	Target  string  `json:"target,omitempty"`
}

func (d Decision) Redirect() bool {
	return d.Outcome == RedirectAuth || d.Outcome == RedirectHome
}

// Decide applies, in order: unresolved session, missing identity, open route,
// matching role, and finally a redirect to the caller's home.
func Decide(st session.State, required role.Role) Decision {
	if st.Loading || !st.RoleResolved {
		return Decision{Outcome: Loading}
	}
	if st.Identity == nil {
		return Decision{Outcome: RedirectAuth, Target: nav.AuthPath}
	}
	if required == role.None {
		return Decision{Outcome: Allow}
	}
	current := st.Role()
	if current == required {
		return Decision{Outcome: Allow}
	}
	home, ok := nav.HomeFor(current)
	if !ok {
		return Decision{Outcome: RedirectAuth, Target: nav.AuthPath}
	}
	return Decision{Outcome: RedirectHome, Target: home}
}

// DecidePath looks path up in the route table before deciding. The sign-in
// page is open to everyone, but a resolved signed-in user with a known role is
// sent home from it.
func DecidePath(st session.State, path string) Decision {
	route, ok := nav.Lookup(path)
	if !ok {
		return Decision{Outcome: NotFound}
	}
	if route.Public {
		if st.Resolved() && st.Identity != nil {
			if home, ok := nav.HomeFor(st.Role()); ok {
				return Decision{Outcome: RedirectHome, Target: home}
			}
		}
		return Decision{Outcome: Allow}
	}
	return Decide(st, route.RequiredRole)
}
