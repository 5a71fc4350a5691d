// Package nav contains the static role -> routes mapping and the menu
// composer built on it. Everything here is pure lookup.
package nav

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coursedesk/coursedesk/internal/domain/access"
	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

// LoginPath is the entry route reachable without a session.
const LoginPath = "/login"

// MenuEntry is one static menu line of an area.
type MenuEntry struct {
	Label string
	Path  string
}

// Area is the slice of the application owned by one role.
type Area struct {
	Role   domainauth.Role
	Prefix string
	Home   string
	Menu   []MenuEntry
}

// RoleRouteMap maps every role to its area plus the list of public routes.
type RoleRouteMap struct {
	Areas  []Area
	Public []string
}

// DefaultRouteMap returns the course system's route table.
func DefaultRouteMap() RoleRouteMap {
	return RoleRouteMap{
		Public: []string{LoginPath, "/register", "/forgot-password"},
		Areas: []Area{
			{
				Role:   domainauth.RoleTeacher,
				Prefix: "/teacher",
				Home:   "/teacher/dashboard",
				Menu: []MenuEntry{
					{Label: "控制台", Path: "/teacher/dashboard"},
					{Label: "作业批改", Path: "/teacher/grading"},
					{Label: "课程管理", Path: "/teacher/courses"},
					{Label: "课程资源", Path: "/teacher/resources"},
					{Label: "答疑看板", Path: "/teacher/feedback"},
				},
			},
			{
				Role:   domainauth.RoleOfficer,
				Prefix: "/admin",
				Home:   "/admin/dashboard",
				Menu: []MenuEntry{
					{Label: "控制台", Path: "/admin/dashboard"},
					{Label: "课程管理", Path: "/admin/courses"},
					{Label: "人员管理", Path: "/admin/users"},
				},
			},
			{
				Role:   domainauth.RoleStudent,
				Prefix: "/student",
				Home:   "/student/dashboard",
				Menu: []MenuEntry{
					{Label: "控制台", Path: "/student/dashboard"},
					{Label: "我的课程", Path: "/student/courses"},
					{Label: "成绩查询", Path: "/student/grades"},
					{Label: "答疑反馈", Path: "/student/feedback"},
					{Label: "个人中心", Path: "/student/profile"},
				},
			},
		},
	}
}

// HomeFor returns the home route of role.
func (m RoleRouteMap) HomeFor(role domainauth.Role) (string, bool) {
	if a, ok := m.area(role); ok {
		return a.Home, true
	}
	return "", false
}

// IsPublic reports whether path is one of the public routes.
func (m RoleRouteMap) IsPublic(path string) bool {
	for _, p := range m.Public {
		if hasPathPrefix(path, p) {
			return true
		}
	}
	return false
}

// RequiredRoles returns the role set guarding path. Public routes yield an
// empty set; ok is false when path belongs to no area and is not public.
func (m RoleRouteMap) RequiredRoles(path string) (access.RoleSet, bool) {
	if m.IsPublic(path) {
		return access.Roles(), true
	}
	var roles access.RoleSet
	for _, a := range m.Areas {
		if hasPathPrefix(path, a.Prefix) {
			roles = append(roles, a.Role)
		}
	}
	return roles, len(roles) > 0
}

// Validate checks the map invariants: every role has exactly one area with a
// home inside its prefix, menus stay inside the prefix, and no two roles'
// prefixes overlap.
func (m RoleRouteMap) Validate() error {
	var errs []error
	seen := make(map[domainauth.Role]int, len(m.Areas))
	for _, a := range m.Areas {
		seen[a.Role]++
		if !a.Role.Valid() {
			errs = append(errs, fmt.Errorf("area %q: unknown role %q", a.Prefix, a.Role))
		}
		if a.Home == "" || !hasPathPrefix(a.Home, a.Prefix) {
			errs = append(errs, fmt.Errorf("role %s: home %q outside prefix %q", a.Role, a.Home, a.Prefix))
		}
		for _, e := range a.Menu {
			if !hasPathPrefix(e.Path, a.Prefix) {
				errs = append(errs, fmt.Errorf("role %s: menu path %q outside prefix %q", a.Role, e.Path, a.Prefix))
			}
		}
	}
	for _, r := range domainauth.Roles() {
		if n := seen[r]; n != 1 {
			errs = append(errs, fmt.Errorf("role %s: expected exactly one area, found %d", r, n))
		}
	}
	for i, a := range m.Areas {
		for _, b := range m.Areas[i+1:] {
			if a.Role != b.Role && (hasPathPrefix(a.Prefix, b.Prefix) || hasPathPrefix(b.Prefix, a.Prefix)) {
				errs = append(errs, fmt.Errorf("prefixes %q (%s) and %q (%s) overlap", a.Prefix, a.Role, b.Prefix, b.Role))
			}
		}
	}
	return errors.Join(errs...)
}

func (m RoleRouteMap) area(role domainauth.Role) (Area, bool) {
	for _, a := range m.Areas {
		if a.Role == role {
			return a, true
		}
	}
	return Area{}, false
}

// hasPathPrefix matches whole path segments: "/teacher" matches "/teacher"
// and "/teacher/x" but not "/teachers".
func hasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return strings.HasPrefix(path, "/")
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
