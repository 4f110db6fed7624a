package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	cookieName    = "atpl_uid"
	learnerHeader = "X-Learner-Id"
)

// EnsureUser resolves the anonymous learner of a request. The X-Learner-Id
// header wins over the cookie so clients without cookie support keep their
// history. Unknown IDs are recreated; missing ones get a fresh UUID cookie.
func EnsureUser(db *gorm.DB, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		pubID := strings.TrimSpace(c.GetHeader(learnerHeader))
		if _, err := uuid.Parse(pubID); err != nil {
			pubID = ""
		}
		if pubID == "" {
			if v, err := c.Cookie(cookieName); err == nil {
				if _, err := uuid.Parse(v); err == nil {
					pubID = v
				}
			}
		}

		if pubID == "" {
			pubID = uuid.New().String()
			u := User{PublicID: pubID}
			if err := db.Create(&u).Error; err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user create failed"})
				return
			}
			setLearnerCookie(c, pubID, secureCookies)
			c.Header(learnerHeader, pubID)
			c.Set("userPublicID", pubID)
			c.Set("userDBID", u.ID)
			c.Next()
			return
		}

		var u User
		if err := db.FirstOrCreate(&u, User{PublicID: pubID}).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user recreate failed"})
			return
		}

		c.Header(learnerHeader, pubID)
		c.Set("userPublicID", pubID)
		c.Set("userDBID", u.ID)
		c.Next()
	}
}

func setLearnerCookie(c *gin.Context, pubID string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookieName,
		Value:    pubID,
		Path:     "/",
		MaxAge:   365 * 24 * 3600, // 1 year
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
