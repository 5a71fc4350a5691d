package nav

import domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"

// MenuItem is a rendered menu line.
type MenuItem struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

// Compose returns the ordered menu for role with the entry matching
// currentPath marked active. The longest matching entry wins so nested
// screens highlight their parent. Unknown roles get an empty menu.
func (m RoleRouteMap) Compose(role domainauth.Role, currentPath string) []MenuItem {
	a, ok := m.area(role)
	if !ok || !role.Valid() {
		return []MenuItem{}
	}

	items := make([]MenuItem, len(a.Menu))
	active, best := -1, 0
	for i, e := range a.Menu {
		items[i] = MenuItem{Label: e.Label, Path: e.Path}
		if hasPathPrefix(currentPath, e.Path) && len(e.Path) > best {
			active, best = i, len(e.Path)
		}
	}
	if active >= 0 {
		items[active].Active = true
	}
	return items
}
