package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/middleware"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

// AuthController handles registration, login, logout and the current user.
type AuthController struct {
	accounts  *services.AccountService
	issuer    *utils.TokenIssuer
	blacklist *utils.TokenBlacklist
	guard     *utils.RegistrationGuard
}

func NewAuthController(accounts *services.AccountService, issuer *utils.TokenIssuer, blacklist *utils.TokenBlacklist, guard *utils.RegistrationGuard) *AuthController {
	return &AuthController{accounts: accounts, issuer: issuer, blacklist: blacklist, guard: guard}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Name     string `json:"name"`
	Number   string `json:"number"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register creates an account and signs the caller in.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "name and password are required")
		return
	}

	ip := ctx.ClientIP()
	if !a.guard.Allow(ctx.Request.Context(), ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many registrations, try again later")
		return
	}

	user, err := a.accounts.Register(ctx.Request.Context(), req.Name, req.Password, models.Role(strings.ToLower(strings.TrimSpace(req.Role))))
	if err != nil {
		respondError(ctx, err)
		return
	}
	a.guard.Succeeded(ctx.Request.Context(), ip)

	token, exp, err := a.issuer.Generate(user.ID, string(user.Role))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to issue token")
		return
	}
	utils.Created(ctx, authResponse{Token: token, ExpiresAt: exp, User: user})
}

// Login authenticates by numeric handle or name. The handle wins when both are sent.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || (strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Number) == "") {
		utils.Error(ctx, http.StatusBadRequest, 40011, "name or number and password are required")
		return
	}

	user, err := a.accounts.Authenticate(ctx.Request.Context(), req.Name, req.Number, req.Password)
	if err != nil {
		if services.KindOf(err) == services.KindPermission {
			utils.Error(ctx, http.StatusUnauthorized, 40111, services.Reason(err))
			return
		}
		respondError(ctx, err)
		return
	}

	token, exp, err := a.issuer.Generate(user.ID, string(user.Role))
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to issue token")
		return
	}
	utils.Success(ctx, authResponse{Token: token, ExpiresAt: exp, User: user})
}

// Logout revokes the presented token until it would have expired.
func (a *AuthController) Logout(ctx *gin.Context) {
	token, exp := middleware.CurrentToken(ctx)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if exp.IsZero() {
		exp = time.Now().Add(24 * time.Hour)
	}
	a.blacklist.Revoke(ctx.Request.Context(), token, exp)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the caller with the current point balance.
func (a *AuthController) Me(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	user, err := a.accounts.User(ctx.Request.Context(), p.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}
