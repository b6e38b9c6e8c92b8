package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/myblog/middleware"
	"github.com/cppla/myblog/utils"
)

// Flashes pops the caller's pending flash messages.
func Flashes(ctx *gin.Context) {
	ident := middleware.Identity(ctx)
	utils.Success(ctx, gin.H{"messages": utils.PopFlashes(ident.UserID)})
}
