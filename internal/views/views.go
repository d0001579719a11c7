// Package views picks the concrete page variant for a route and role.
package views

import (
	"github.com/lufespi/gestor-academico/internal/nav"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/rpc"
)

type View struct {
	Name   string    `json:"name"`
	Role   role.Role `json:"role"`
	Panels []string  `json:"panels"`
}

var coordinatorDashboard = View{Name: "coordinator_dashboard", Role: role.Coordinator, Panels: []string{
	rpc.TotalStudents, rpc.ActiveProjects, rpc.UpcomingDeadlinesCount, rpc.OverdueItemsCount,
	rpc.ProjectStatusDistribution, rpc.RecentActivities,
}}

var professorDashboard = View{Name: "professor_dashboard", Role: role.Professor, Panels: []string{
	rpc.MyAdvisees, rpc.UpcomingDeadlinesCount, rpc.OverdueItemsCount, rpc.RecentActivities,
}}

var studentDashboard = View{Name: "student_dashboard", Role: role.Student, Panels: []string{
	rpc.MyProjectDetails, rpc.MyDeadlines, rpc.MyMeetings, rpc.RecentActivities,
}}

var coordinatorViews = map[string]View{
	"/":                      coordinatorDashboard,
	"/dashboard":             coordinatorDashboard,
	"/coordinator/dashboard": coordinatorDashboard,
	"/students":              {Name: "coordinator_students", Role: role.Coordinator, Panels: []string{rpc.Students}},
	"/professors":            {Name: "coordinator_professors", Role: role.Coordinator, Panels: []string{rpc.Professors}},
	"/reports": {Name: "coordinator_reports", Role: role.Coordinator, Panels: []string{
		rpc.ProjectStatusDistribution, rpc.TotalStudents, rpc.ActiveProjects, rpc.OverdueItemsCount,
	}},
	"/assignments":   {Name: "coordinator_assignments", Role: role.Coordinator, Panels: []string{rpc.Assignments}},
	"/review-panels": {Name: "coordinator_review_panels", Role: role.Coordinator, Panels: []string{rpc.ReviewPanels}},
	"/grading":       {Name: "coordinator_grading", Role: role.Coordinator, Panels: []string{rpc.Evaluations}},
	"/meetings":      {Name: "coordinator_meetings", Role: role.Coordinator, Panels: []string{rpc.MyMeetings}},
	"/my-project":    {Name: "coordinator_projects", Role: role.Coordinator, Panels: []string{rpc.ActiveProjects}},
	"/deadlines":     {Name: "coordinator_deadlines", Role: role.Coordinator, Panels: []string{rpc.ProjectDeadlines}},
	"/calendar":      {Name: "coordinator_calendar", Role: role.Coordinator, Panels: []string{rpc.ProjectDeadlines, rpc.MyMeetings}},
}

var professorViews = map[string]View{
	"/":                    professorDashboard,
	"/dashboard":           professorDashboard,
	"/professor/dashboard": professorDashboard,
	"/advisees":            {Name: "professor_advisees", Role: role.Professor, Panels: []string{rpc.MyAdvisees}},
	"/assignments":         {Name: "professor_assignments", Role: role.Professor, Panels: []string{rpc.Assignments}},
	"/review-panels":       {Name: "professor_review_panels", Role: role.Professor, Panels: []string{rpc.ReviewPanels}},
	"/grading":             {Name: "professor_grading", Role: role.Professor, Panels: []string{rpc.Evaluations}},
	"/meetings":            {Name: "professor_meetings", Role: role.Professor, Panels: []string{rpc.MyMeetings}},
	"/my-project":          {Name: "professor_projects", Role: role.Professor, Panels: []string{rpc.ActiveProjects}},
	"/deadlines":           {Name: "professor_deadlines", Role: role.Professor, Panels: []string{rpc.ProjectDeadlines}},
	"/calendar":            {Name: "professor_calendar", Role: role.Professor, Panels: []string{rpc.ProjectDeadlines, rpc.MyMeetings}},
}

var studentViews = map[string]View{
	"/":                  studentDashboard,
	"/dashboard":         studentDashboard,
	"/student/dashboard": studentDashboard,
	"/my-project":        {Name: "student_project", Role: role.Student, Panels: []string{rpc.MyProjectDetails}},
	"/assignments":       {Name: "student_advisor", Role: role.Student, Panels: []string{rpc.MyProjectDetails}},
	"/review-panels":     {Name: "student_review_panel", Role: role.Student, Panels: []string{rpc.ReviewPanels}},
	"/grading":           {Name: "student_grades", Role: role.Student, Panels: []string{rpc.Evaluations}},
	"/meetings":          {Name: "student_meetings", Role: role.Student, Panels: []string{rpc.MyMeetings}},
	"/deadlines":         {Name: "student_deadlines", Role: role.Student, Panels: []string{rpc.MyDeadlines}},
	"/calendar":          {Name: "student_calendar", Role: role.Student, Panels: []string{rpc.MyDeadlines, rpc.MyMeetings}},
}

// Resolve returns the view r sees at path. It is evaluated on every call so a
// role change mid-session takes effect on the next request. A route pinned to
// another role, an unknown role or an unknown path resolve to nothing.
func Resolve(path string, r role.Role) (View, bool) {
	route, ok := nav.Lookup(path)
	if !ok || route.Public {
		return View{}, false
	}
	if route.RequiredRole != role.None && route.RequiredRole != r {
		return View{}, false
	}

	var table map[string]View
	switch r {
	case role.Coordinator:
		table = coordinatorViews
	case role.Professor:
		table = professorViews
	case role.Student:
		table = studentViews
	default:
		return View{}, false
	}

	view, ok := table[route.Path]
	if !ok {
		return View{}, false
	}
	view.Panels = append([]string(nil), view.Panels...)
	return view, true
}
