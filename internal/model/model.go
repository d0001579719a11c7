package model

import (
	"time"

	"github.com/lufespi/gestor-academico/internal/role"
)

type User struct {
	ID               string
	Email            string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

type Profile struct {
	UserID    string
	Email     string
	FullName  string
	Role      role.Role
	Phone     *string
	AvatarURL *string
}

// NewAccount is everything written when an account is created: the user,
// its profile and the role row (students or professors).
type NewAccount struct {
	User    User
	Profile Profile
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

// Caller identifies who runs a role-scoped query.
type Caller struct {
	UserID string
	Role   role.Role
}

type ProjectStatus string

const (
	StatusProposta             ProjectStatus = "proposta"
	StatusReelaboracaoProposta ProjectStatus = "reelaboracao_proposta"
	StatusEmAndamento          ProjectStatus = "em_andamento"
	StatusEntregue             ProjectStatus = "entregue"
	StatusReelaboracaoTC       ProjectStatus = "reelaboracao_tc"
	StatusAvaliado             ProjectStatus = "avaliado"
	StatusAprovado             ProjectStatus = "aprovado"
	StatusReprovado            ProjectStatus = "reprovado"
)

// Stage orders statuses along the thesis workflow. Final verdicts share the
// last stage.
func (s ProjectStatus) Stage() int {
	switch s {
	case StatusProposta:
		return 0
	case StatusReelaboracaoProposta:
		return 1
	case StatusEmAndamento:
		return 2
	case StatusEntregue:
		return 3
	case StatusReelaboracaoTC:
		return 4
	case StatusAvaliado:
		return 5
	case StatusAprovado, StatusReprovado:
		return 6
	default:
		return -1
	}
}

func (s ProjectStatus) Active() bool {
	return s != StatusAprovado && s != StatusReprovado
}

type DeadlineStatus string

const (
	DeadlinePending   DeadlineStatus = "pending"
	DeadlineOverdue   DeadlineStatus = "overdue"
	DeadlineSubmitted DeadlineStatus = "submitted"
)

type Deadline struct {
	DeadlineName string         `json:"deadline_name"`
	DueDate      time.Time      `json:"due_date"`
	Status       DeadlineStatus `json:"status"`
}

type StatusCount struct {
	StatusName   string `json:"status_name"`
	ProjectCount int64  `json:"project_count"`
}

type Activity struct {
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
}

type ProjectSummary struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Status      ProjectStatus `json:"status"`
	StudentName string        `json:"student_name"`
	AdvisorName *string       `json:"advisor_name,omitempty"`
}

type ProjectDetails struct {
	ProjectSummary
	Description *string    `json:"description,omitempty"`
	Deadlines   []Deadline `json:"deadlines"`
}

type ProjectDeadlines struct {
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	StudentName string     `json:"student_name"`
	Deadlines   []Deadline `json:"deadlines"`
}

type Meeting struct {
	ID              string     `json:"id"`
	ProjectTitle    string     `json:"project_title"`
	ProfessorName   string     `json:"professor_name"`
	StudentName     string     `json:"student_name"`
	MeetingDate     time.Time  `json:"meeting_date"`
	DurationMinutes *int32     `json:"duration_minutes,omitempty"`
	Agenda          *string    `json:"agenda,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	NextMeeting     *time.Time `json:"next_meeting,omitempty"`
}

type Advisee struct {
	StudentID          string         `json:"student_id"`
	FullName           string         `json:"full_name"`
	Email              string         `json:"email"`
	Course             *string        `json:"course,omitempty"`
	RegistrationNumber *string        `json:"registration_number,omitempty"`
	Semester           *int32         `json:"semester,omitempty"`
	ProjectTitle       *string        `json:"project_title,omitempty"`
	ProjectStatus      *ProjectStatus `json:"project_status,omitempty"`
}

type StudentSummary struct {
	StudentID          string  `json:"student_id"`
	FullName           string  `json:"full_name"`
	Email              string  `json:"email"`
	Course             *string `json:"course,omitempty"`
	RegistrationNumber *string `json:"registration_number,omitempty"`
	Semester           *int32  `json:"semester,omitempty"`
	AdvisorName        *string `json:"advisor_name,omitempty"`
	IsActive           bool    `json:"is_active"`
}

type ProfessorSummary struct {
	ProfessorID    string  `json:"professor_id"`
	FullName       string  `json:"full_name"`
	Email          string  `json:"email"`
	Department     *string `json:"department,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
	AdviseeCount   int64   `json:"advisee_count"`
	IsActive       bool    `json:"is_active"`
}

type Assignment struct {
	StudentID     string  `json:"student_id"`
	StudentName   string  `json:"student_name"`
	ProfessorName *string `json:"professor_name,omitempty"`
	ProjectTitle  *string `json:"project_title,omitempty"`
}

type ReviewPanel struct {
	ID             string     `json:"id"`
	ProjectTitle   string     `json:"project_title"`
	StudentName    string     `json:"student_name"`
	Professor1Name string     `json:"professor1_name"`
	Professor2Name string     `json:"professor2_name"`
	DefenseDate    *time.Time `json:"defense_date,omitempty"`
	Location       *string    `json:"location,omitempty"`
}

type Evaluation struct {
	ID             string    `json:"id"`
	ProjectTitle   string    `json:"project_title"`
	ProfessorName  string    `json:"professor_name"`
	EvaluationType string    `json:"evaluation_type"`
	Score          *float64  `json:"score,omitempty"`
	Comments       *string   `json:"comments,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
