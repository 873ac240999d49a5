package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

// PlanController serves the weekly scripture plans.
type PlanController struct {
	plans *services.PlanService
}

func NewPlanController(plans *services.PlanService) *PlanController {
	return &PlanController{plans: plans}
}

type upsertPlanRequest struct {
	Year     int      `json:"year" binding:"required"`
	Week     int      `json:"week" binding:"required"`
	Segments []string `json:"segments" binding:"required"`
}

// Get returns the plan of ?year=&week= or null.
func (p *PlanController) Get(ctx *gin.Context) {
	year, ok := intQuery(ctx, "year")
	if !ok {
		return
	}
	week, ok := intQuery(ctx, "week")
	if !ok {
		return
	}
	plan, err := p.plans.Get(ctx.Request.Context(), year, week)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, plan)
}

// List returns every plan. Admin only.
func (p *PlanController) List(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}
	plans, err := p.plans.List(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, plans)
}

// Upsert creates or replaces a week's plan. Admin only.
func (p *PlanController) Upsert(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}
	var req upsertPlanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "year, week and segments are required")
		return
	}
	plan, err := p.plans.Upsert(ctx.Request.Context(), actor, req.Year, req.Week, req.Segments)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, plan)
}
