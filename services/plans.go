package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bible-memorize/server/calendar"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/store"
	"github.com/bible-memorize/server/utils"
)

// PlanView is a scripture plan with its seven segments in order.
type PlanView struct {
	ID       uint     `json:"id"`
	Year     int      `json:"year"`
	Week     int      `json:"week"`
	Segments []string `json:"segments"`
}

func planView(p *models.ScripturePlan) *PlanView {
	return &PlanView{ID: p.ID, Year: p.Year, Week: p.Week, Segments: p.Segments()}
}

// PlanService reads and writes weekly scripture plans. It never touches
// check-in state.
type PlanService struct {
	store *store.Store
	clock Clock
	loc   *time.Location
}

func NewPlanService(st *store.Store, clock Clock, loc *time.Location) *PlanService {
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = SystemClock{Location: loc}
	}
	return &PlanService{store: st, clock: clock, loc: loc}
}

// Get returns the plan of (year, week), or nil when none exists. Zero
// values mean the current ISO week.
func (p *PlanService) Get(ctx context.Context, year, week int) (*PlanView, error) {
	year, week = p.resolve(year, week)
	if week < 1 || week > calendar.WeeksInYear(year) {
		return nil, validationf("invalid week %d-W%02d", year, week)
	}
	plan, err := p.store.PlanByWeek(ctx, year, week)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("load plan", err)
	}
	return planView(plan), nil
}

// List returns every plan, newest week first. Admin only.
func (p *PlanService) List(ctx context.Context, actor Principal) ([]PlanView, error) {
	if actor.Role != models.RoleAdmin {
		return nil, permissionf("only admins can list plans")
	}
	plans, err := p.store.ListPlans(ctx)
	if err != nil {
		return nil, storageErr("list plans", err)
	}
	out := make([]PlanView, 0, len(plans))
	for i := range plans {
		out = append(out, *planView(&plans[i]))
	}
	return out, nil
}

// Upsert stores seven trimmed, sanitized segments for (year, week). Admin only.
func (p *PlanService) Upsert(ctx context.Context, actor Principal, year, week int, segments []string) (*PlanView, error) {
	if actor.Role != models.RoleAdmin {
		return nil, permissionf("only admins can edit plans")
	}
	if year < 1 || week < 1 || week > calendar.WeeksInYear(year) {
		return nil, validationf("invalid week %d-W%02d", year, week)
	}
	if len(segments) < 7 {
		return nil, validationf("seven segments are required")
	}
	clean := make([]string, 7)
	for i := range clean {
		clean[i] = utils.Sanitize(strings.TrimSpace(segments[i]))
	}

	plan := &models.ScripturePlan{Year: year, Week: week}
	plan.SetSegments(clean)
	saved, err := p.store.UpsertPlan(ctx, plan)
	if err != nil {
		return nil, storageErr("save plan", err)
	}
	return planView(saved), nil
}

func (p *PlanService) resolve(year, week int) (int, int) {
	if year != 0 && week != 0 {
		return year, week
	}
	cy, cw := calendar.ISOWeek(p.clock.Now().In(p.loc))
	if year == 0 {
		year = cy
	}
	if week == 0 {
		week = cw
	}
	return year, week
}
