package services

import (
	"context"

	"github.com/bible-memorize/server/calendar"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/store"
)

// WeekCheckins is one user's check-ins within an ISO week.
type WeekCheckins struct {
	Year  int       `json:"year"`
	Week  int       `json:"week"`
	Days  [7]string `json:"days"`
	Dates []string  `json:"dates"`
}

// DaySummary is one user's state for today.
type DaySummary struct {
	UserID            uint               `json:"user_id"`
	Name              string             `json:"name"`
	Number            string             `json:"number"`
	Role              models.Role        `json:"role"`
	HasCheckedInToday bool               `json:"has_checked_in_today"`
	Approved          bool               `json:"approved"`
	TodaysRecordings  []models.Recording `json:"todays_recordings"`
}

// canRead lets privileged roles read anyone and everyone else only themselves.
func canRead(actor Principal, userID uint) bool {
	return actor.Role.Privileged() || actor.ID == userID
}

// QueryApproval reports whether studentID was approved on date.
func (s *CheckinService) QueryApproval(ctx context.Context, actor Principal, studentID uint, date string) (bool, error) {
	if !calendar.ValidDateKey(date) {
		return false, validationf("invalid date %q", date)
	}
	if !canRead(actor, studentID) {
		return false, permissionf("no access to user %d", studentID)
	}
	ok, err := s.store.HasApproval(ctx, studentID, date)
	if err != nil {
		return false, storageErr("query approval", err)
	}
	return ok, nil
}

// Approvals lists studentID's approvals, newest first.
func (s *CheckinService) Approvals(ctx context.Context, actor Principal, studentID uint) ([]store.ApprovalView, error) {
	if !canRead(actor, studentID) {
		return nil, permissionf("no access to user %d", studentID)
	}
	out, err := s.store.ApprovalsForStudent(ctx, studentID)
	if err != nil {
		return nil, storageErr("list approvals", err)
	}
	return out, nil
}

// QueryCheckins returns userID's check-in dates inside ISO week (year, week).
// Zero year or week means the current one.
func (s *CheckinService) QueryCheckins(ctx context.Context, userID uint, year, week int) (WeekCheckins, error) {
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
		return WeekCheckins{}, validationf("invalid week %d-W%02d", year, week)
	}

	days := calendar.WeekDateKeys(year, week, s.loc)
	dates, err := s.store.CheckinDates(ctx, userID, days[0], days[6])
	if err != nil {
		return WeekCheckins{}, storageErr("load check-ins", err)
	}
	if dates == nil {
		dates = []string{}
	}
	return WeekCheckins{Year: year, Week: week, Days: days, Dates: dates}, nil
}

// AllCheckins returns every check-in date of userID, ascending.
func (s *CheckinService) AllCheckins(ctx context.Context, userID uint) ([]string, error) {
	dates, err := s.store.CheckinDates(ctx, userID, "", "")
	if err != nil {
		return nil, storageErr("load check-ins", err)
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// TodaySummary lists every non-admin user with today's check-in, approval
// and recordings.
func (s *CheckinService) TodaySummary(ctx context.Context, actor Principal) ([]DaySummary, error) {
	if !actor.Role.Privileged() {
		return nil, permissionf("only admins, teachers and parents can view the daily summary")
	}
	today := s.Today()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	checked, err := s.store.CheckedInUsers(ctx, today)
	if err != nil {
		return nil, storageErr("load check-ins", err)
	}
	recs, err := s.store.AllRecordings(ctx)
	if err != nil {
		return nil, storageErr("load recordings", err)
	}
	byUser := make(map[uint][]models.Recording)
	for _, r := range RecordingsOn(recs, today, s.loc) {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	out := make([]DaySummary, 0, len(users))
	for _, u := range users {
		if u.Role == models.RoleAdmin {
			continue
		}
		approved := false
		if u.Role == models.RoleStudent {
			if approved, err = s.store.HasApproval(ctx, u.ID, today); err != nil {
				return nil, storageErr("query approval", err)
			}
		}
		todays := byUser[u.ID]
		if todays == nil {
			todays = []models.Recording{}
		}
		out = append(out, DaySummary{
			UserID:            u.ID,
			Name:              u.Name,
			Number:            u.Number,
			Role:              u.Role,
			HasCheckedInToday: checked[u.ID],
			Approved:          approved,
			TodaysRecordings:  todays,
		})
	}
	return out, nil
}
