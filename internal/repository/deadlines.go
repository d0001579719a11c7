package repository

import (
	"time"

	"github.com/lufespi/gestor-academico/internal/model"
)

const upcomingWindow = 7 * 24 * time.Hour

type projectRow struct {
	ID          string
	Title       string
	Description *string
	Status      model.ProjectStatus
	StudentName string
	AdvisorName *string

	ProposalDeadline              *time.Time
	ProposalReelaborationDeadline *time.Time
	TCDeadline                    *time.Time
	TCReelaborationDeadline       *time.Time
}

// A deadline counts as submitted once the project has reached the stage that
// follows the delivery.
var deadlineStages = []struct {
	name        string
	submittedAt int
	due         func(projectRow) *time.Time
}{
	{"Proposta", 1, func(p projectRow) *time.Time { return p.ProposalDeadline }},
	{"Reelaboração da Proposta", 2, func(p projectRow) *time.Time { return p.ProposalReelaborationDeadline }},
	{"Trabalho de Conclusão", 3, func(p projectRow) *time.Time { return p.TCDeadline }},
	{"Reelaboração do Trabalho de Conclusão", 5, func(p projectRow) *time.Time { return p.TCReelaborationDeadline }},
}

func buildDeadlines(p projectRow, now time.Time) []model.Deadline {
	today := truncateDay(now)
	stage := p.Status.Stage()
	out := make([]model.Deadline, 0, len(deadlineStages))
	for _, d := range deadlineStages {
		due := d.due(p)
		if due == nil {
			continue
		}
		status := model.DeadlinePending
		switch {
		case stage >= d.submittedAt:
			status = model.DeadlineSubmitted
		case truncateDay(*due).Before(today):
			status = model.DeadlineOverdue
		}
		out = append(out, model.Deadline{DeadlineName: d.name, DueDate: truncateDay(*due), Status: status})
	}
	return out
}

func countDeadlines(projects []projectRow, now time.Time) (upcoming, overdue int64) {
	today := truncateDay(now)
	horizon := today.Add(upcomingWindow)
	for _, p := range projects {
		for _, d := range buildDeadlines(p, now) {
			switch d.Status {
			case model.DeadlineOverdue:
				overdue++
			case model.DeadlinePending:
				if !d.DueDate.After(horizon) {
					upcoming++
				}
			}
		}
	}
	return upcoming, overdue
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
