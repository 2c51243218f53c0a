package session

// RouteGroup is a named partition of the navigable screens.
type RouteGroup string

const (
	// GroupRoot is the entry screen shown before any group is chosen.
	GroupRoot       RouteGroup = ""
	GroupAuth       RouteGroup = "auth"
	GroupOnboarding RouteGroup = "onboarding"
	GroupMainApp    RouteGroup = "main"
)

func (g RouteGroup) String() string {
	if g == GroupRoot {
		return "root"
	}
	return string(g)
}

// Decision is the outcome of Evaluate. When RedirectTo is set the caller must
// navigate there; Loading asks the view to render a pending state.
type Decision struct {
	Allow      bool
	Loading    bool
	RedirectTo RouteGroup
}

// Redirects reports whether the decision forces a navigation.
func (d Decision) Redirects() bool {
	return !d.Allow && d.RedirectTo != GroupRoot
}

// Landing is the group an authenticated user is sent to.
func Landing(onboarded bool) RouteGroup {
	if onboarded {
		return GroupMainApp
	}
	return GroupOnboarding
}

// Evaluate decides whether a user with session s and the given onboarding
// state may stay in the current group. It has no side effects.
//
// An authenticated session that violates the user id invariant is treated
// as unauthenticated.
func Evaluate(s Session, onboarded bool, current RouteGroup) Decision {
	switch {
	case s.Status == StatusUnknown:
		return Decision{Allow: true, Loading: true}

	case s.IsAuthenticated():
		switch current {
		case GroupRoot, GroupAuth:
			return redirect(Landing(onboarded))
		case GroupOnboarding:
			if onboarded {
				return redirect(GroupMainApp)
			}
		case GroupMainApp:
			if !onboarded {
				return redirect(GroupOnboarding)
			}
		}
		return Decision{Allow: true}

	default:
		if current != GroupAuth {
			return redirect(GroupAuth)
		}
		return Decision{Allow: true}
	}
}

func redirect(to RouteGroup) Decision {
	return Decision{RedirectTo: to}
}
