package middleware

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"closetvote/internal/models"
)

const CheckUserKey = "user"

// SessionUserKey is the session field the auth provider sets on login.
const SessionUserKey = "user_id"

type UserFinder interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// sessionUserID accepts the integer types a session codec may hand back.
func sessionUserID(v interface{}) (uint, bool) {
	switch id := v.(type) {
	case uint:
		return id, id > 0
	case int:
		return uint(id), id > 0
	case int64:
		return uint(id), id > 0
	case uint64:
		return uint(id), id > 0
	case float64:
		return uint(id), id > 0
	}
	return 0, false
}

// LoadUser retrieves user from session and sets to context
func LoadUser(users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if id, ok := sessionUserID(session.Get(SessionUserKey)); ok {
			user, err := users.FindUser(c.Request.Context(), id)
			if err == nil {
				c.Set(CheckUserKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user loaded by LoadUser, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "please log in"})
			return
		}
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "please log in"})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "admin access required"})
			return
		}
		c.Next()
	}
}
