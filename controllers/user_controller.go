package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/utils"
)

// UserController exposes account administration.
type UserController struct {
	accounts *services.AccountService
}

func NewUserController(accounts *services.AccountService) *UserController {
	return &UserController{accounts: accounts}
}

// List returns every user. Admin only.
func (u *UserController) List(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	users, err := u.accounts.ListUsers(ctx.Request.Context(), p)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, users)
}

// Students lists students for privileged roles.
func (u *UserController) Students(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	students, err := u.accounts.ListStudents(ctx.Request.Context(), p)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, students)
}

// Delete removes a user and everything they own.
func (u *UserController) Delete(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	if err := u.accounts.DeleteUser(ctx.Request.Context(), p, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"ok": true})
}
