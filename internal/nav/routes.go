// Package nav holds the route table of the front-end: paths, breadcrumb
// trails and which routes need a signed-in operator.
package nav

import (
	"strings"
)

type Crumb struct {
	Label string `json:"label"`
	To    string `json:"to,omitempty"`
}

type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
	// Breadcrumb links may reference route params as :name.
	Breadcrumb []Crumb
}

var (
	Home = Route{
		Name: "Home",
		Path: "/",
		Breadcrumb: []Crumb{
			{Label: "Home", To: "/"},
		},
	}
	Sessions = Route{
		Name:         "Sessions",
		Path:         "/sessions",
		RequiresAuth: true,
		Breadcrumb: []Crumb{
			{Label: "Home", To: "/"},
			{Label: "Sessions", To: "/sessions"},
		},
	}
	About = Route{
		Name: "About",
		Path: "/about",
		Breadcrumb: []Crumb{
			{Label: "Home", To: "/"},
			{Label: "About", To: "/about"},
		},
	}
	SessionDetail = Route{
		Name:         "SessionDetail",
		Path:         "/sessions/:id",
		RequiresAuth: true,
		Breadcrumb: []Crumb{
			{Label: "Home", To: "/"},
			{Label: "Sessions", To: "/sessions"},
			{Label: "Session"},
		},
	}
	UEView = Route{
		Name:         "UEView",
		Path:         "/sessions/:sessionId/ue/:ueId",
		RequiresAuth: true,
		Breadcrumb: []Crumb{
			{Label: "Home", To: "/"},
			{Label: "Sessions", To: "/sessions"},
			{Label: "Session", To: "/sessions/:sessionId"},
			{Label: "UE"},
		},
	}
	RoomView = Route{
		Name:         "RoomView",
		Path:         "/sessions/:sessionId/ue/:ueId/event/:eventId",
		RequiresAuth: true,
		Breadcrumb: []Crumb{
			{Label: "Home", To: "/"},
			{Label: "Sessions", To: "/sessions"},
			{Label: "Session", To: "/sessions/:sessionId"},
			{Label: "UE", To: "/sessions/:sessionId/ue/:ueId"},
			{Label: "Event"},
		},
	}
	AttendanceView = Route{
		Name:         "AttendanceView",
		Path:         "/sessions/:sessionId/ue/:ueId/event/:eventId/room/:roomId",
		RequiresAuth: true,
		Breadcrumb: []Crumb{
			{Label: "Home", To: "/"},
			{Label: "Sessions", To: "/sessions"},
			{Label: "Session", To: "/sessions/:sessionId"},
			{Label: "UE", To: "/sessions/:sessionId/ue/:ueId"},
			{Label: "Event", To: "/sessions/:sessionId/ue/:ueId/event/:eventId"},
			{Label: "Attendance"},
		},
	}
)

// Routes is the route table in declaration order.
var Routes = []Route{Home, Sessions, About, SessionDetail, UEView, RoomView, AttendanceView}

// Lookup finds a route by name.
func Lookup(name string) (Route, bool) {
	for _, r := range Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// Params returns the names of the route params in path order.
func (r Route) Params() []string {
	var names []string
	for _, seg := range strings.Split(r.Path, "/") {
		if strings.HasPrefix(seg, ":") {
			names = append(names, seg[1:])
		}
	}
	return names
}

// Expand replaces every :name segment of path with param(name).
func Expand(path string, param func(string) string) string {
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if strings.HasPrefix(seg, ":") {
			segs[i] = param(seg[1:])
		}
	}
	return strings.Join(segs, "/")
}

// Crumbs resolves the breadcrumb trail for the given params.
func (r Route) Crumbs(param func(string) string) []Crumb {
	out := make([]Crumb, len(r.Breadcrumb))
	for i, c := range r.Breadcrumb {
		out[i] = Crumb{Label: c.Label, To: Expand(c.To, param)}
	}
	return out
}

// Pattern converts the route path, plus an optional suffix in the same
// syntax, into a net/http ServeMux pattern.
func (r Route) Pattern(method, suffix string) string {
	path := r.Path + suffix
	if path == "/" {
		return method + " /{$}"
	}
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if strings.HasPrefix(seg, ":") {
			segs[i] = "{" + seg[1:] + "}"
		}
	}
	return method + " " + strings.Join(segs, "/")
}
