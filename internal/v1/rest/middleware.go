// Package rest exposes the REST slice of the chat core: chat message CRUD and
// blocked-user management, authenticated with a bearer access token.
package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/streamnest/chatd/internal/v1/assist"
	"github.com/streamnest/chatd/internal/v1/status"
)

const (
	ctxUserID  = "rest_user_id"
	ctxIsAdmin = "rest_is_admin"
)

// RequireUser resolves the bearer token to a user and stores the identity on
// the request context. The num_token check makes stale tokens unusable even
// before expiry.
func RequireUser(assistant *assist.Assistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, status.New(http.StatusUnauthorized, "unauthorized"))
			return
		}

		userID, numToken, err := assistant.DecodeAndVerifyToken(token)
		if err != nil {
			abortWithStatus(c, err)
			return
		}

		user, err := assistant.CheckNumTokenAndGetUser(c.Request.Context(), userID, numToken)
		if err != nil {
			abortWithStatus(c, err)
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxIsAdmin, user.IsAdmin)
		c.Next()
	}
}

func callerID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func callerIsAdmin(c *gin.Context) bool {
	return c.GetBool(ctxIsAdmin)
}

func abortWithStatus(c *gin.Context, err error) {
	se := status.From(err)
	c.AbortWithStatusJSON(se.Status, se)
}
