package router

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/models"
	"pumpdash/dashboard/internal/notification"
	"pumpdash/dashboard/internal/session"
)

func signedIn(role models.UserRole) session.State {
	return session.State{
		LoggedIn: true,
		User:     models.User{ID: "u1", Email: "u@pump.io", Name: "U", Role: role},
	}
}

var signedOut = session.State{User: models.EmptyUser()}

func TestDecide(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name   string
		route  Name
		state  session.State
		want   Outcome
		target Name
		reason Reason
	}{
		{"public while signed out", RouteLogin, signedOut, OutcomeAllow, RouteLogin, ReasonNone},
		{"verification while signed out", RouteUserVerification, signedOut, OutcomeAllow, RouteUserVerification, ReasonNone},
		{"private while signed out", RouteDashboard, signedOut, OutcomeRedirect, RouteVisitor, ReasonUnauthenticated},
		{"unknown route while signed out", Name("Nowhere"), signedOut, OutcomeRedirect, RouteVisitor, ReasonUnauthenticated},
		{"public while signed in", RouteLogin, signedIn(models.UserRoleVisitor), OutcomeRedirect, RouteDashboard, ReasonSignedIn},
		{"home while signed in", RouteVisitor, signedIn(models.UserRoleAdmin), OutcomeRedirect, RouteDashboard, ReasonSignedIn},
		{"admin on user management", RouteUserManagement, signedIn(models.UserRoleAdmin), OutcomeRedirect, RouteDashboard, ReasonUnauthorized},
		{"visitor on user management", RouteUserManagement, signedIn(models.UserRoleVisitor), OutcomeRedirect, RouteDashboard, ReasonUnauthorized},
		{"super admin on user management", RouteUserManagement, signedIn(models.UserRoleSuperAdmin), OutcomeAllow, RouteUserManagement, ReasonNone},
		{"visitor on sensors", RouteSensorManagement, signedIn(models.UserRoleVisitor), OutcomeAllow, RouteSensorManagement, ReasonNone},
		{"admin on pumps", RoutePumpManagement, signedIn(models.UserRoleAdmin), OutcomeAllow, RoutePumpManagement, ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := table.Decide(tt.route, tt.state)
			if d.Outcome != tt.want || d.Target != tt.target || d.Reason != tt.reason {
				t.Errorf("Decide(%q) = %+v, want %s -> %q (%s)", tt.route, d, tt.want, tt.target, tt.reason)
			}
		})
	}
}

type fakeResolver struct {
	state    session.State
	resolved int
}

func (f *fakeResolver) Resolve(context.Context) session.State {
	f.resolved++
	return f.state
}

type recordingNotifier struct {
	added []notification.Notification
}

func (r *recordingNotifier) Add(message string, kind notification.Kind) notification.Notification {
	n := notification.Notification{ID: "n", Message: message, Kind: kind}
	r.added = append(r.added, n)
	return n
}

func navigate(state session.State, route Name) (Decision, *fakeResolver, *recordingNotifier) {
	res := &fakeResolver{state: state}
	notes := &recordingNotifier{}
	nav := NewNavigator(DefaultTable(), res, notes, zerolog.Nop(), nil)
	return nav.Navigate(context.Background(), route), res, notes
}

func TestNavigateUnauthenticatedToDashboard(t *testing.T) {
	d, res, notes := navigate(signedOut, RouteDashboard)

	if d.Allowed() || d.Target != RouteVisitor {
		t.Fatalf("decision = %+v", d)
	}
	if res.resolved != 1 {
		t.Errorf("session resolved %d times", res.resolved)
	}
	if len(notes.added) != 1 || notes.added[0].Kind != notification.KindError || notes.added[0].Message != MsgNotLoggedIn {
		t.Errorf("notifications = %+v", notes.added)
	}
}

func TestNavigateSignedInVisitorToLogin(t *testing.T) {
	d, _, notes := navigate(signedIn(models.UserRoleVisitor), RouteLogin)

	if d.Allowed() || d.Target != RouteDashboard {
		t.Fatalf("decision = %+v", d)
	}
	if len(notes.added) != 0 {
		t.Errorf("unexpected notifications %+v", notes.added)
	}
}

func TestNavigateAdminToUserManagement(t *testing.T) {
	d, _, notes := navigate(signedIn(models.UserRoleAdmin), RouteUserManagement)

	if d.Allowed() || d.Target != RouteDashboard {
		t.Fatalf("decision = %+v", d)
	}
	if len(notes.added) != 1 || notes.added[0].Message != MsgNotAuthorized {
		t.Errorf("notifications = %+v", notes.added)
	}

	d, _, notes = navigate(signedIn(models.UserRoleSuperAdmin), RouteUserManagement)
	if !d.Allowed() || len(notes.added) != 0 {
		t.Fatalf("super admin blocked: %+v %+v", d, notes.added)
	}
}

func TestTableLookupAndPath(t *testing.T) {
	table := DefaultTable()

	if got := table.Path(RouteUserManagement); got != "/user/user-management" {
		t.Errorf("path = %q", got)
	}
	r, ok := table.Lookup(RouteUserManagement)
	if !ok || r.MinRole == nil || *r.MinRole != models.UserRoleSuperAdmin {
		t.Errorf("user management meta = %+v", r)
	}
	if _, ok := table.Lookup("Missing"); ok {
		t.Error("lookup of unknown route reported ok")
	}
	if len(table.Routes()) != 7 {
		t.Errorf("routes = %d", len(table.Routes()))
	}
}
