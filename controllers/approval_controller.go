package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

// ApprovalController lets privileged users accept or reject a student's day.
type ApprovalController struct {
	svc *services.CheckinService
}

func NewApprovalController(svc *services.CheckinService) *ApprovalController {
	return &ApprovalController{svc: svc}
}

type studentDayRequest struct {
	StudentID flexID `json:"studentId"`
	Date      string `json:"date"`
}

func bindStudentDay(ctx *gin.Context) (studentDayRequest, bool) {
	var req studentDayRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.StudentID == 0 || strings.TrimSpace(req.Date) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40030, "studentId and date are required")
		return req, false
	}
	req.Date = strings.TrimSpace(req.Date)
	return req, true
}

// Approve accepts the student's recording for the day and checks them in.
func (a *ApprovalController) Approve(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	req, ok := bindStudentDay(ctx)
	if !ok {
		return
	}
	res, err := a.svc.Approve(ctx.Request.Context(), p, uint(req.StudentID), req.Date)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// Reject deletes every recording the student made that day.
func (a *ApprovalController) Reject(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	req, ok := bindStudentDay(ctx)
	if !ok {
		return
	}
	res, err := a.svc.Reject(ctx.Request.Context(), p, uint(req.StudentID), req.Date)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// ForStudent lists a student's approvals, newest first.
func (a *ApprovalController) ForStudent(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := uintParam(ctx, "studentId")
	if !ok {
		return
	}
	out, err := a.svc.Approvals(ctx.Request.Context(), p, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, out)
}

// Check answers whether the student was approved on :date.
func (a *ApprovalController) Check(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := uintParam(ctx, "studentId")
	if !ok {
		return
	}
	approved, err := a.svc.QueryApproval(ctx.Request.Context(), p, id, ctx.Param("date"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"approved": approved})
}
