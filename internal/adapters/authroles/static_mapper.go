package authroles

import (
	"strings"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// DefaultAliases is the built-in alias table. The course backend only emits
// teacher, officer and student, so it is empty; ROLE_ALIASES opts in to more.
func DefaultAliases() map[string]domainauth.Role {
	return map[string]domainauth.Role{}
}

// StaticRoleMapper maps the backend's raw role through a case-insensitive alias table.
// Unrecognized values pass through ParseRole and fail Role.Valid downstream.
type StaticRoleMapper struct {
	Aliases map[string]domainauth.Role
}

// NewStaticRoleMapper merges extra aliases over DefaultAliases.
func NewStaticRoleMapper(extra map[string]string) StaticRoleMapper {
	aliases := DefaultAliases()
	for raw, role := range extra {
		aliases[strings.ToLower(strings.TrimSpace(raw))] = domainauth.ParseRole(role)
	}
	return StaticRoleMapper{Aliases: aliases}
}

func (m StaticRoleMapper) Map(raw string) domainauth.Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	if r, ok := m.Aliases[key]; ok {
		return r
	}
	return domainauth.ParseRole(raw)
}
