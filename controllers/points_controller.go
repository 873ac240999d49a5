package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

const (
	rankingCacheKey = "cache:points:ranking"
	rankingCacheTTL = 60 * time.Second
)

// PointsController exposes balances, history, adjustments and the leaderboard.
type PointsController struct {
	ledger *services.Ledger
	svc    *services.CheckinService
	cache  *utils.Cache
}

// NewPointsController wires the controller and drops the cached ranking
// after every ledger write.
func NewPointsController(ledger *services.Ledger, svc *services.CheckinService, cache *utils.Cache) *PointsController {
	pc := &PointsController{ledger: ledger, svc: svc, cache: cache}
	ledger.AfterWrite(pc.InvalidateRanking)
	return pc
}

// InvalidateRanking drops the cached leaderboard.
func (p *PointsController) InvalidateRanking() {
	p.cache.InvalidateByPrefix(context.Background(), rankingCacheKey)
}

type adjustRequest struct {
	StudentID    flexID `json:"studentId"`
	PointsChange *int   `json:"pointsChange"`
	Reason       string `json:"reason"`
}

// Me returns the caller's balance and last entries.
func (p *PointsController) Me(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}
	out, err := p.ledger.MyPoints(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}

// Student returns one student's balance and history.
func (p *PointsController) Student(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := uintParam(ctx, "studentId")
	if !ok {
		return
	}
	out, err := p.ledger.StudentPoints(ctx.Request.Context(), actor, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}

// Adjust applies a manual signed change with a reason.
func (p *PointsController) Adjust(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}
	var req adjustRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.StudentID == 0 || req.PointsChange == nil || strings.TrimSpace(req.Reason) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40040, "studentId, pointsChange and reason are required")
		return
	}
	adj, err := p.ledger.AdjustPoints(ctx.Request.Context(), actor, uint(req.StudentID), *req.PointsChange, req.Reason)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, adj)
}

// CheckDaily deducts the missing-recording point once per day.
func (p *PointsController) CheckDaily(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}
	var req checkinRequest
	_ = ctx.ShouldBindJSON(&req)
	res, err := p.svc.CheckDailyDeduction(ctx.Request.Context(), actor, strings.TrimSpace(req.Date))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// Ranking lists students by balance. The full list is cached; fields are
// trimmed per caller.
func (p *PointsController) Ranking(ctx *gin.Context) {
	actor, ok := principal(ctx)
	if !ok {
		return
	}
	var entries []services.RankingEntry
	if !p.cache.GetJSON(ctx.Request.Context(), rankingCacheKey, &entries) {
		var err error
		entries, err = p.ledger.Ranking(ctx.Request.Context())
		if err != nil {
			respondError(ctx, err)
			return
		}
		p.cache.SetJSON(ctx.Request.Context(), rankingCacheKey, entries, rankingCacheTTL)
	}
	utils.Success(ctx, services.VisibleRanking(actor, entries))
}
