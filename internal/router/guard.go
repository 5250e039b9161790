package router

import (
	"context"

	"github.com/rs/zerolog"

	"pumpdash/dashboard/internal/metrics"
	"pumpdash/dashboard/internal/notification"
	"pumpdash/dashboard/internal/session"
)

const (
	MsgNotLoggedIn   = "You are not logged in!"
	MsgNotAuthorized = "You are not authorized!"
)

type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonSignedIn        Reason = "signed_in"
	ReasonUnauthorized    Reason = "unauthorized"
)

type Decision struct {
	Outcome Outcome
	Target  Name
	Reason  Reason
	// Notice is the error shown to the user, empty when none.
	Notice string
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

func allow(target Name) Decision {
	return Decision{Outcome: OutcomeAllow, Target: target}
}

func redirect(target Name, reason Reason, notice string) Decision {
	return Decision{Outcome: OutcomeRedirect, Target: target, Reason: reason, Notice: notice}
}

// Decide applies the guard rules to an already resolved session. The
// first matching rule wins.
func (t *Table) Decide(name Name, st session.State) Decision {
	route, _ := t.Lookup(name)

	switch {
	case route.Public && !st.LoggedIn:
		return allow(name)
	case !st.LoggedIn:
		return redirect(RouteVisitor, ReasonUnauthenticated, MsgNotLoggedIn)
	case route.Public:
		return redirect(RouteDashboard, ReasonSignedIn, "")
	case route.MinRole != nil && !st.User.Role.Satisfies(*route.MinRole):
		return redirect(RouteDashboard, ReasonUnauthorized, MsgNotAuthorized)
	}
	return allow(name)
}

// Resolver settles the session before the guard reads it.
type Resolver interface {
	Resolve(ctx context.Context) session.State
}

type Notifier interface {
	Add(message string, kind notification.Kind) notification.Notification
}

type Navigator struct {
	table    *Table
	sessions Resolver
	notes    Notifier
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewNavigator(table *Table, sessions Resolver, notes Notifier, log zerolog.Logger, m *metrics.Metrics) *Navigator {
	return &Navigator{
		table:    table,
		sessions: sessions,
		notes:    notes,
		log:      log,
		metrics:  m,
	}
}

// Navigate resolves the session, then decides. A redirect carrying a
// notice adds one error notification.
func (n *Navigator) Navigate(ctx context.Context, name Name) Decision {
	st := n.sessions.Resolve(ctx)
	d := n.table.Decide(name, st)

	if d.Notice != "" {
		n.notes.Add(d.Notice, notification.KindError)
	}
	n.metrics.GuardDecision(string(d.Outcome), string(d.Reason))

	if !d.Allowed() {
		n.log.Debug().
			Str("route", string(name)).
			Str("target", string(d.Target)).
			Str("reason", string(d.Reason)).
			Str("user_id", st.User.ID).
			Msg("navigation redirected")
	}
	return d
}

func (n *Navigator) Table() *Table {
	return n.table
}
