package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bible-memorize/server/middleware"
	"github.com/bible-memorize/server/observability"
	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

// respondError maps a services error onto the uniform envelope. Codes are
// status*100 + a small per-kind suffix so clients can switch on them.
func respondError(ctx *gin.Context, err error) {
	status, code := http.StatusInternalServerError, 50000
	switch services.KindOf(err) {
	case services.KindValidation:
		status, code = http.StatusBadRequest, 40000
	case services.KindPermission:
		status, code = http.StatusForbidden, 40300
	case services.KindPrecondition:
		status, code = http.StatusConflict, 40900
	case services.KindNotFound:
		status, code = http.StatusNotFound, 40400
	}
	if status >= 500 {
		tags := map[string]string{"route": ctx.FullPath()}
		if p, ok := middleware.CurrentPrincipal(ctx); ok {
			tags["user_id"] = strconv.FormatUint(uint64(p.ID), 10)
		}
		utils.Logger.Error("request failed", zap.String("route", ctx.FullPath()), zap.Error(err))
		observability.CaptureErr(err, tags)
		_ = ctx.Error(err)
	}
	utils.Error(ctx, status, code, services.Reason(err))
}

// principal loads the caller or answers 401.
func principal(ctx *gin.Context) (services.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	}
	return p, ok
}

// uintParam parses a positive integer path parameter or answers 400.
func uintParam(ctx *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(ctx.Param(name))
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// intQuery parses an optional integer query value; absent means 0.
func intQuery(ctx *gin.Context, name string) (int, bool) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid "+name)
		return 0, false
	}
	return n, true
}

// flexID accepts a JSON number or numeric string, as clients send both.
type flexID uint

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}
