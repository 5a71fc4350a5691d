package nav

import (
	"github.com/coursedesk/coursedesk/internal/domain/access"
	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

// Resolution is the outcome of a navigation: the policy decision and, for
// redirects, where the visitor goes instead.
type Resolution struct {
	Decision access.Decision
	Target   string
}

// Resolve decides whether sess may open path. Paths outside every area and
// not public require some signed-in role. A role without a home falls back to
// the login route.
func (m RoleRouteMap) Resolve(sess *domainauth.Session, path string) Resolution {
	required, known := m.RequiredRoles(path)
	if !known {
		required = access.Roles(domainauth.Roles()...)
	}
	d := access.Decide(sess, required)
	switch d.Kind {
	case access.KindAllow:
		return Resolution{Decision: d, Target: path}
	case access.KindRedirectHome:
		if home, ok := m.HomeFor(d.Role); ok {
			return Resolution{Decision: d, Target: home}
		}
	}
	return Resolution{Decision: d, Target: LoginPath}
}
