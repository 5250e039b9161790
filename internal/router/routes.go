package router

import "pumpdash/dashboard/internal/models"

type Name string

const (
	RouteVisitor          Name = "Visitor"
	RouteLogin            Name = "Login"
	RouteUserVerification Name = "User Verification"
	RouteDashboard        Name = "Dashboard"
	RouteSensorManagement Name = "Sensor Management"
	RoutePumpManagement   Name = "Pump Management"
	RouteUserManagement   Name = "User Management"
)

type Route struct {
	Name Name
	// Path uses gin syntax for parameters.
	Path   string
	Public bool
	// MinRole is the least privileged role let through; nil means any
	// signed-in user.
	MinRole *models.UserRole
}

type Table struct {
	routes []Route
	byName map[Name]Route
}

func NewTable(routes ...Route) *Table {
	t := &Table{byName: make(map[Name]Route, len(routes))}
	for _, r := range routes {
		t.routes = append(t.routes, r)
		t.byName[r.Name] = r
	}
	return t
}

func DefaultTable() *Table {
	superAdmin := models.UserRoleSuperAdmin
	return NewTable(
		Route{Name: RouteVisitor, Path: "/", Public: true},
		Route{Name: RouteLogin, Path: "/login", Public: true},
		Route{Name: RouteUserVerification, Path: "/verify-account/:id", Public: true},
		Route{Name: RouteDashboard, Path: "/user/dashboard"},
		Route{Name: RouteSensorManagement, Path: "/user/sensor-management"},
		Route{Name: RoutePumpManagement, Path: "/user/pump-management"},
		Route{Name: RouteUserManagement, Path: "/user/user-management", MinRole: &superAdmin},
	)
}

func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Lookup returns the route; unknown names come back as a private route
// without role requirement.
func (t *Table) Lookup(name Name) (Route, bool) {
	r, ok := t.byName[name]
	if !ok {
		return Route{Name: name}, false
	}
	return r, true
}

func (t *Table) Path(name Name) string {
	return t.byName[name].Path
}
