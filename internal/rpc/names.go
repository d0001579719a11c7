// Package rpc names the role-scoped read queries the backend exposes.
package rpc

const (
	TotalStudents             = "get_total_students"
	ActiveProjects            = "get_active_projects"
	UpcomingDeadlinesCount    = "get_upcoming_deadlines_count"
	OverdueItemsCount         = "get_overdue_items_count"
	ProjectStatusDistribution = "get_project_status_distribution"
	RecentActivities          = "get_recent_activities"
	MyProjectDetails          = "get_my_project_details"
	MyDeadlines               = "get_my_deadlines"
	MyMeetings                = "get_my_meetings"
	MyAdvisees                = "get_my_advisees"
	UserRole                  = "get_user_role"
	Students                  = "get_students"
	Professors                = "get_professors"
	Assignments               = "get_assignments"
	ReviewPanels              = "get_review_panels"
	Evaluations               = "get_evaluations"
	ProjectDeadlines          = "get_project_deadlines"
)

func All() []string {
	return []string{
		TotalStudents,
		ActiveProjects,
		UpcomingDeadlinesCount,
		OverdueItemsCount,
		ProjectStatusDistribution,
		RecentActivities,
		MyProjectDetails,
		MyDeadlines,
		MyMeetings,
		MyAdvisees,
		UserRole,
		Students,
		Professors,
		Assignments,
		ReviewPanels,
		Evaluations,
		ProjectDeadlines,
	}
}

func Known(name string) bool {
	for _, n := range All() {
		if n == name {
			return true
		}
	}
	return false
}
