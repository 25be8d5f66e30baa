package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	AdminTokenHeader = "X-Admin-Token"
	sessionAdminKey  = "admin"
)

// tokenMatches compares in constant time so response timing does not leak
// how much of the secret a guess got right.
func tokenMatches(secret, candidate string) bool {
	if secret == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(candidate)) == 1
}

// AdminRequired admits requests carrying the admin token header, or an admin
// session established by Login.
func (a *API) AdminRequired(c *gin.Context) {
	if a.cfg.AdminToken == "" {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ADMIN_TOKEN is not configured."})
		return
	}
	if tokenMatches(a.cfg.AdminToken, c.GetHeader(AdminTokenHeader)) {
		c.Next()
		return
	}
	if admin, _ := sessions.Default(c).Get(sessionAdminKey).(bool); admin {
		c.Next()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}

func (a *API) Login(c *gin.Context) {
	if a.cfg.AdminToken == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "ADMIN_TOKEN is not configured on the server."})
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON"})
		return
	}
	if !tokenMatches(a.cfg.AdminToken, req.Token) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid admin token."})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionAdminKey, true)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Unable to start admin session."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}
