// Package access holds the route access policy: a pure function from a
// session snapshot and a route's required roles to a navigation decision.
package access

import (
	"slices"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

// Kind enumerates the possible outcomes of a policy evaluation.
type Kind int

const (
	KindAllow Kind = iota
	KindRedirectLogin
	KindRedirectHome
)

func (k Kind) String() string {
	switch k {
	case KindAllow:
		return "allow"
	case KindRedirectLogin:
		return "redirect_login"
	case KindRedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Decision is the transient result of evaluating the policy for one navigation.
// Role is set only for KindRedirectHome.
type Decision struct {
	Kind Kind
	Role domainauth.Role
}

// Allow permits the navigation.
func Allow() Decision { return Decision{Kind: KindAllow} }

// RedirectLogin sends the visitor to the entry route.
func RedirectLogin() Decision { return Decision{Kind: KindRedirectLogin} }

// RedirectHome sends the visitor to the home route of role.
func RedirectHome(role domainauth.Role) Decision {
	return Decision{Kind: KindRedirectHome, Role: role}
}

// Allowed reports whether the decision permits rendering.
func (d Decision) Allowed() bool { return d.Kind == KindAllow }

// RoleSet is the set of roles permitted on a route. An empty set marks a public route.
type RoleSet []domainauth.Role

// Roles builds a RoleSet.
func Roles(roles ...domainauth.Role) RoleSet { return RoleSet(roles) }

// Public reports whether the set imposes no requirement.
func (s RoleSet) Public() bool { return len(s) == 0 }

// Contains reports whether role is a member of the set.
func (s RoleSet) Contains(role domainauth.Role) bool { return slices.Contains(s, role) }

// Decide evaluates the access policy. session is nil when no session exists.
//
// Precedence:
//  1. an empty requirement allows, even without a session (login, register);
//  2. a missing session or empty token redirects to login;
//  3. a missing or unrecognized role redirects to login (corrupt session);
//  4. a role inside the requirement allows;
//  5. anything else redirects to the role's home.
func Decide(session *domainauth.Session, required RoleSet) Decision {
	if required.Public() {
		return Allow()
	}
	if session == nil || !session.HasToken() {
		return RedirectLogin()
	}
	role := session.Identity.Role
	if !role.Valid() {
		return RedirectLogin()
	}
	if required.Contains(role) {
		return Allow()
	}
	return RedirectHome(role)
}
