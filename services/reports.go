package services

import (
	"context"

	"github.com/bible-memorize/server/calendar"
	"github.com/bible-memorize/server/export"
	"github.com/bible-memorize/server/models"
)

// WeeklyReport collects balances and the check-in grid of every student for
// one ISO week. Zero year or week means the current one.
func (s *CheckinService) WeeklyReport(ctx context.Context, actor Principal, year, week int) (export.WeeklyReport, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleTeacher {
		return export.WeeklyReport{}, permissionf("only admins and teachers can export reports")
	}
	if year == 0 || week == 0 {
		cy, cw := calendar.ISOWeek(s.clock.Now().In(s.loc))
		if year == 0 {
			year = cy
		}
		if week == 0 {
			week = cw
		}
	}
	if year < 1 || week < 1 || week > calendar.WeeksInYear(year) {
		return export.WeeklyReport{}, validationf("invalid week %d-W%02d", year, week)
	}

	days := calendar.WeekDateKeys(year, week, s.loc)
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return export.WeeklyReport{}, storageErr("list students", err)
	}
	checkins, err := s.store.CheckinsBetween(ctx, days[0], days[6])
	if err != nil {
		return export.WeeklyReport{}, storageErr("load check-ins", err)
	}

	index := make(map[string]int, len(days))
	for i, d := range days {
		index[d] = i
	}
	rep := export.WeeklyReport{Year: year, Week: week, Dates: days}
	for _, u := range students {
		row := export.StudentRow{Name: u.Name, Number: u.Number, Points: u.Points}
		for _, d := range checkins[u.ID] {
			if i, ok := index[d]; ok {
				row.Checked[i] = true
			}
		}
		rep.Students = append(rep.Students, row)
	}
	return rep, nil
}
