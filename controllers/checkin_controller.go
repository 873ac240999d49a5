package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

// CheckinController handles daily check-in endpoints.
type CheckinController struct {
	svc *services.CheckinService
}

// NewCheckinController creates a new controller instance.
func NewCheckinController(svc *services.CheckinService) *CheckinController {
	return &CheckinController{svc: svc}
}

type checkinRequest struct {
	Date string `json:"date"`
}

// Create checks the caller in for the given date, today when omitted.
func (c *CheckinController) Create(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	var req checkinRequest
	// an empty body means today
	_ = ctx.ShouldBindJSON(&req)

	res, err := c.svc.SelfCheckin(ctx.Request.Context(), p, strings.TrimSpace(req.Date))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// Week returns the caller's check-ins in ?year=&week=, current week by default.
func (c *CheckinController) Week(ctx *gin.Context) {
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
	out, err := c.svc.QueryCheckins(ctx.Request.Context(), p.ID, year, week)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}

// All returns every check-in date of the caller.
func (c *CheckinController) All(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	dates, err := c.svc.AllCheckins(ctx.Request.Context(), p.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"dates": dates})
}

// Today summarizes every member's state for the current day.
func (c *CheckinController) Today(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	out, err := c.svc.TodaySummary(ctx.Request.Context(), p)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"date": c.svc.Today(), "users": out})
}
