package server

import (
	"net/http"

	"github.com/cnosuke/link-preview/auth"
	"github.com/cnosuke/link-preview/types"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func registerAuthRoutes(r gin.IRouter, p auth.Provider) {
	g := r.Group("/auth")
	if p == nil {
		// Sign-in is not configured; clients still get an empty session.
		g.GET("/session", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
		return
	}

	g.GET("/signin/google", signInHandler(p))
	g.GET("/callback/google", callbackHandler(p))
	g.POST("/signout", signOutHandler(p))
	g.GET("/signout", signOutHandler(p))
	g.GET("/session", sessionHandler(p))
}

func signInHandler(p auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.SignIn(c.Writer, c.Request); err != nil {
			zap.S().Errorw("failed to start sign-in", "error", err)
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "Failed to start sign-in"})
			return
		}
		c.Abort()
	}
}

func callbackHandler(p auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.Callback(c.Writer, c.Request); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, auth.ErrStateMismatch) {
				status = http.StatusUnauthorized
			}
			zap.S().Warnw("sign-in callback failed", "status", status, "error", err)
			c.JSON(status, types.ErrorResponse{Error: "Sign-in failed"})
			return
		}
		c.Abort()
	}
}

func signOutHandler(p auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		p.SignOut(c.Writer, c.Request)
		status := http.StatusFound
		if c.Request.Method == http.MethodPost {
			status = http.StatusSeeOther
		}
		c.Redirect(status, "/")
	}
}

func sessionHandler(p auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := p.Session(c.Request)
		if err != nil {
			zap.S().Debugw("no active session", "error", err)
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}
