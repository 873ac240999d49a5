package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/export"
	"github.com/bible-memorize/server/observability"
	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/store"
	"github.com/bible-memorize/server/utils"
)

// StatsController provides class statistics, the weekly report and the health probe.
type StatsController struct {
	store   *store.Store
	svc     *services.CheckinService
	metrics *observability.Metrics
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(st *store.Store, svc *services.CheckinService, metrics *observability.Metrics) *StatsController {
	return &StatsController{store: st, svc: svc, metrics: metrics}
}

// GetStats returns member counts and today's check-in count.
func (s *StatsController) GetStats(ctx *gin.Context) {
	c := ctx.Request.Context()
	today := s.svc.Today()

	var userCount, studentCount, checkedIn int64
	if n, err := s.store.CountUsers(c); err == nil {
		userCount = n
	}
	// counts fall back to 0 instead of failing the whole endpoint
	if students, err := s.store.ListStudents(c); err == nil {
		studentCount = int64(len(students))
	}
	if users, err := s.store.CheckedInUsers(c, today); err == nil {
		checkedIn = int64(len(users))
	}

	utils.Success(ctx, gin.H{
		"date":             today,
		"user_count":       userCount,
		"student_count":    studentCount,
		"checked_in_today": checkedIn,
	})
}

// WeeklyReport downloads the xlsx attendance report for ?year=&week=.
func (s *StatsController) WeeklyReport(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	year, ok := intQuery(ctx, "year")
	if !ok {
		return
	}
	week, ok := intQuery(ctx, "week")
	if !ok {
		return
	}
	rep, err := s.svc.WeeklyReport(ctx.Request.Context(), p, year, week)
	if err != nil {
		respondError(ctx, err)
		return
	}
	f, err := export.Build(rep)
	if err != nil {
		respondError(ctx, err)
		return
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="`+rep.Filename()+`"`)
	ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// Health pings the database.
func (s *StatsController) Health(ctx *gin.Context) {
	c, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()
	start := time.Now()
	err := s.store.Ping(c)
	if s.metrics != nil {
		s.metrics.ObserveDBPing(time.Since(start))
	}
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50300, "database unavailable")
		return
	}
	utils.Success(ctx, gin.H{"status": "ok"})
}
