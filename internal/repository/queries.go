package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lufespi/gestor-academico/internal/model"
	"github.com/lufespi/gestor-academico/internal/role"
	"github.com/lufespi/gestor-academico/internal/rpc"
)

var ErrUnknownQuery = errors.New("unknown query")

// Rows visible to a caller: coordinators see every project, professors the
// projects of their advisees, students their own. $1 is the caller role and
// $2 the caller user id. Expects students s and professors adv in scope.
const scopeClause = `(
	$1::text = 'coordinator'
	OR ($1::text = 'professor' AND adv.user_id = $2::uuid)
	OR ($1::text = 'student' AND s.user_id = $2::uuid)
)`

const projectColumns = `
	p.id::text, p.title, p.description, p.status::text,
	COALESCE(sp.full_name, ''), ap.full_name,
	p.proposal_deadline, p.proposal_reelaboration_deadline, p.tc_deadline, p.tc_reelaboration_deadline`

const projectJoins = `
	FROM projects p
	JOIN students s ON s.id = p.student_id
	LEFT JOIN profiles sp ON sp.user_id = s.user_id
	LEFT JOIN professors adv ON adv.id = s.advisor_id
	LEFT JOIN profiles ap ON ap.user_id = adv.user_id`

// Query runs the named role-scoped query. Callers are expected to have
// checked the role policy; the scoping here only narrows rows.
func (s *Store) Query(ctx context.Context, name string, caller model.Caller, params map[string]string) (any, error) {
	switch name {
	case rpc.TotalStudents:
		return s.totalStudents(ctx)
	case rpc.ActiveProjects:
		return s.activeProjects(ctx, caller)
	case rpc.UpcomingDeadlinesCount:
		projects, err := s.scopedProjects(ctx, caller)
		if err != nil {
			return nil, err
		}
		upcoming, _ := countDeadlines(projects, s.now())
		return upcoming, nil
	case rpc.OverdueItemsCount:
		projects, err := s.scopedProjects(ctx, caller)
		if err != nil {
			return nil, err
		}
		_, overdue := countDeadlines(projects, s.now())
		return overdue, nil
	case rpc.ProjectStatusDistribution:
		return s.statusDistribution(ctx, caller)
	case rpc.RecentActivities:
		return s.recentActivities(ctx, caller)
	case rpc.MyProjectDetails:
		return s.myProjectDetails(ctx, caller)
	case rpc.MyDeadlines:
		return s.myDeadlines(ctx, caller)
	case rpc.MyMeetings:
		return s.meetings(ctx, caller)
	case rpc.MyAdvisees:
		return s.advisees(ctx, caller)
	case rpc.UserRole:
		target := params["user_id"]
		if target == "" {
			target = caller.UserID
		}
		return s.userRole(ctx, target)
	case rpc.Students:
		return s.students(ctx)
	case rpc.Professors:
		return s.professors(ctx)
	case rpc.Assignments:
		return s.assignments(ctx, caller)
	case rpc.ReviewPanels:
		return s.reviewPanels(ctx, caller)
	case rpc.Evaluations:
		return s.evaluations(ctx, caller)
	case rpc.ProjectDeadlines:
		return s.projectDeadlines(ctx, caller)
	default:
		return nil, ErrUnknownQuery
	}
}

func (s *Store) totalStudents(ctx context.Context) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM students WHERE is_active`).Scan(&total)
	return total, err
}

func (s *Store) scopedProjects(ctx context.Context, caller model.Caller) ([]projectRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+projectColumns+projectJoins+`
		WHERE `+scopeClause+`
		ORDER BY p.created_at DESC
	`, string(caller.Role), caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []projectRow
	for rows.Next() {
		var (
			p      projectRow
			status string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &status, &p.StudentName, &p.AdvisorName,
			&p.ProposalDeadline, &p.ProposalReelaborationDeadline, &p.TCDeadline, &p.TCReelaborationDeadline); err != nil {
			return nil, err
		}
		p.Status = model.ProjectStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) activeProjects(ctx context.Context, caller model.Caller) ([]model.ProjectSummary, error) {
	projects, err := s.scopedProjects(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]model.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		if !p.Status.Active() {
			continue
		}
		out = append(out, summaryOf(p))
	}
	return out, nil
}

func (s *Store) statusDistribution(ctx context.Context, caller model.Caller) ([]model.StatusCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.status::text, count(*)`+projectJoins+`
		WHERE `+scopeClause+`
		GROUP BY p.status
		ORDER BY p.status
	`, string(caller.Role), caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StatusCount{}
	for rows.Next() {
		var c model.StatusCount
		if err := rows.Scan(&c.StatusName, &c.ProjectCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) recentActivities(ctx context.Context, caller model.Caller) ([]model.Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.created_at, a.description, a.activity_type
		FROM activities a
		LEFT JOIN projects p ON p.id = a.project_id
		LEFT JOIN students s ON s.id = p.student_id
		LEFT JOIN professors adv ON adv.id = s.advisor_id
		WHERE (a.project_id IS NULL AND $1::text = 'coordinator') OR `+scopeClause+`
		ORDER BY a.created_at DESC
		LIMIT 10
	`, string(caller.Role), caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.CreatedAt, &a.Description, &a.Type); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// myProjectDetails returns nil when the student has no project yet.
func (s *Store) myProjectDetails(ctx context.Context, caller model.Caller) (*model.ProjectDetails, error) {
	if caller.Role != role.Student {
		return nil, nil
	}
	projects, err := s.scopedProjects(ctx, caller)
	if err != nil || len(projects) == 0 {
		return nil, err
	}
	p := projects[0]
	return &model.ProjectDetails{
		ProjectSummary: summaryOf(p),
		Description:    p.Description,
		Deadlines:      buildDeadlines(p, s.now()),
	}, nil
}

func (s *Store) myDeadlines(ctx context.Context, caller model.Caller) ([]model.Deadline, error) {
	out := []model.Deadline{}
	if caller.Role != role.Student {
		return out, nil
	}
	projects, err := s.scopedProjects(ctx, caller)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		out = append(out, buildDeadlines(p, s.now())...)
	}
	return out, nil
}

func (s *Store) projectDeadlines(ctx context.Context, caller model.Caller) ([]model.ProjectDeadlines, error) {
	projects, err := s.scopedProjects(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]model.ProjectDeadlines, 0, len(projects))
	for _, p := range projects {
		out = append(out, model.ProjectDeadlines{
			ProjectID:   p.ID,
			Title:       p.Title,
			StudentName: p.StudentName,
			Deadlines:   buildDeadlines(p, s.now()),
		})
	}
	return out, nil
}

func (s *Store) meetings(ctx context.Context, caller model.Caller) ([]model.Meeting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id::text, p.title, COALESCE(mp.full_name, ''), COALESCE(sp.full_name, ''),
			m.meeting_date, m.duration_minutes, m.agenda, m.notes, m.next_meeting
		FROM meetings m
		JOIN projects p ON p.id = m.project_id
		JOIN students s ON s.id = p.student_id
		LEFT JOIN profiles sp ON sp.user_id = s.user_id
		JOIN professors mpr ON mpr.id = m.professor_id
		LEFT JOIN profiles mp ON mp.user_id = mpr.user_id
		LEFT JOIN professors adv ON adv.id = s.advisor_id
		WHERE `+scopeClause+` OR ($1::text = 'professor' AND mpr.user_id = $2::uuid)
		ORDER BY m.meeting_date DESC
		LIMIT 50
	`, string(caller.Role), caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Meeting{}
	for rows.Next() {
		var m model.Meeting
		if err := rows.Scan(&m.ID, &m.ProjectTitle, &m.ProfessorName, &m.StudentName,
			&m.MeetingDate, &m.DurationMinutes, &m.Agenda, &m.Notes, &m.NextMeeting); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) advisees(ctx context.Context, caller model.Caller) ([]model.Advisee, error) {
	out := []model.Advisee{}
	if caller.Role != role.Professor {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT s.id::text, COALESCE(sp.full_name, ''), COALESCE(sp.email, ''),
			s.course, s.registration_number, s.semester, p.title, p.status::text
		FROM students s
		JOIN professors adv ON adv.id = s.advisor_id
		LEFT JOIN profiles sp ON sp.user_id = s.user_id
		LEFT JOIN projects p ON p.student_id = s.id
		WHERE adv.user_id = $1::uuid AND s.is_active
		ORDER BY sp.full_name
	`, caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a      model.Advisee
			status *string
		)
		if err := rows.Scan(&a.StudentID, &a.FullName, &a.Email, &a.Course, &a.RegistrationNumber, &a.Semester, &a.ProjectTitle, &status); err != nil {
			return nil, err
		}
		if status != nil {
			ps := model.ProjectStatus(*status)
			a.ProjectStatus = &ps
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) userRole(ctx context.Context, userID string) (map[string]string, error) {
	var roleText string
	err := s.pool.QueryRow(ctx, `SELECT role::text FROM profiles WHERE user_id = $1::uuid`, userID).Scan(&roleText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]string{"user_id": userID, "role": roleText}, nil
}

func (s *Store) students(ctx context.Context) ([]model.StudentSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id::text, COALESCE(sp.full_name, ''), COALESCE(sp.email, ''),
			s.course, s.registration_number, s.semester, ap.full_name, s.is_active
		FROM students s
		LEFT JOIN profiles sp ON sp.user_id = s.user_id
		LEFT JOIN professors adv ON adv.id = s.advisor_id
		LEFT JOIN profiles ap ON ap.user_id = adv.user_id
		ORDER BY sp.full_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StudentSummary{}
	for rows.Next() {
		var st model.StudentSummary
		if err := rows.Scan(&st.StudentID, &st.FullName, &st.Email, &st.Course, &st.RegistrationNumber, &st.Semester, &st.AdvisorName, &st.IsActive); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) professors(ctx context.Context) ([]model.ProfessorSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pr.id::text, COALESCE(pp.full_name, ''), COALESCE(pp.email, ''),
			pr.department, pr.specialization,
			(SELECT count(*) FROM students s WHERE s.advisor_id = pr.id AND s.is_active),
			pr.is_active
		FROM professors pr
		LEFT JOIN profiles pp ON pp.user_id = pr.user_id
		ORDER BY pp.full_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ProfessorSummary{}
	for rows.Next() {
		var p model.ProfessorSummary
		if err := rows.Scan(&p.ProfessorID, &p.FullName, &p.Email, &p.Department, &p.Specialization, &p.AdviseeCount, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) assignments(ctx context.Context, caller model.Caller) ([]model.Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id::text, COALESCE(sp.full_name, ''), ap.full_name, p.title
		FROM students s
		LEFT JOIN profiles sp ON sp.user_id = s.user_id
		LEFT JOIN professors adv ON adv.id = s.advisor_id
		LEFT JOIN profiles ap ON ap.user_id = adv.user_id
		LEFT JOIN projects p ON p.student_id = s.id
		WHERE `+scopeClause+`
		ORDER BY sp.full_name
	`, string(caller.Role), caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Assignment{}
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.StudentID, &a.StudentName, &a.ProfessorName, &a.ProjectTitle); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) reviewPanels(ctx context.Context, caller model.Caller) ([]model.ReviewPanel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rp.id::text, p.title, COALESCE(sp.full_name, ''),
			COALESCE(p1.full_name, ''), COALESCE(p2.full_name, ''), rp.defense_date, rp.location
		FROM review_panels rp
		JOIN projects p ON p.id = rp.project_id
		JOIN students s ON s.id = p.student_id
		LEFT JOIN profiles sp ON sp.user_id = s.user_id
		LEFT JOIN professors adv ON adv.id = s.advisor_id
		JOIN professors r1 ON r1.id = rp.professor1_id
		JOIN professors r2 ON r2.id = rp.professor2_id
		LEFT JOIN profiles p1 ON p1.user_id = r1.user_id
		LEFT JOIN profiles p2 ON p2.user_id = r2.user_id
		WHERE `+scopeClause+`
			OR ($1::text = 'professor' AND (r1.user_id = $2::uuid OR r2.user_id = $2::uuid))
		ORDER BY rp.defense_date NULLS LAST
	`, string(caller.Role), caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ReviewPanel{}
	for rows.Next() {
		var rp model.ReviewPanel
		if err := rows.Scan(&rp.ID, &rp.ProjectTitle, &rp.StudentName, &rp.Professor1Name, &rp.Professor2Name, &rp.DefenseDate, &rp.Location); err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (s *Store) evaluations(ctx context.Context, caller model.Caller) ([]model.Evaluation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id::text, p.title, COALESCE(ep.full_name, ''), e.evaluation_type::text,
			e.score::float8, e.comments, e.created_at
		FROM evaluations e
		JOIN projects p ON p.id = e.project_id
		JOIN students s ON s.id = p.student_id
		LEFT JOIN professors adv ON adv.id = s.advisor_id
		JOIN professors epr ON epr.id = e.professor_id
		LEFT JOIN profiles ep ON ep.user_id = epr.user_id
		WHERE `+scopeClause+` OR ($1::text = 'professor' AND epr.user_id = $2::uuid)
		ORDER BY e.created_at DESC
	`, string(caller.Role), caller.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Evaluation{}
	for rows.Next() {
		var e model.Evaluation
		if err := rows.Scan(&e.ID, &e.ProjectTitle, &e.ProfessorName, &e.EvaluationType, &e.Score, &e.Comments, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func summaryOf(p projectRow) model.ProjectSummary {
	return model.ProjectSummary{
		ID:          p.ID,
		Title:       p.Title,
		Status:      p.Status,
		StudentName: p.StudentName,
		AdvisorName: p.AdvisorName,
	}
}
