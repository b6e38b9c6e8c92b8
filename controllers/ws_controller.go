package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/myblog/middleware"
	"github.com/cppla/myblog/realtime"
	"github.com/cppla/myblog/utils"
)

// Live upgrades the request to a websocket that streams record events.
// Anonymous readers are accepted.
func Live(hub *realtime.Hub) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ident := middleware.Identity(ctx)
		if err := hub.Serve(ctx.Writer, ctx.Request, ident.UserID); err != nil {
			utils.Sugar.Debugf("websocket upgrade failed: %v", err)
			if !ctx.Writer.Written() {
				utils.Error(ctx, http.StatusBadRequest, 40040, "websocket upgrade required")
			}
		}
	}
}
