package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"BProject/logger"
	security "BProject/tools/security"
)

type loginRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Tier     string `json:"tier"`
}

// HandlerLogin issues a gateway credential for an already-verified account.
// Account verification (password check) lives in the auth service; this
// endpoint only mints tokens and exists so the gateway runs standalone in
// development.
func HandlerLogin(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, expireAt, err := security.Generate(opts, security.Identity{
			UserID:   req.UserID,
			Username: req.Username,
			Email:    req.Email,
			Tier:     req.Tier,
		})
		if err != nil {
			logger.Errorf("[login] token issue user=%s: %v", req.UserID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":    token,
			"expireAt": expireAt,
			"user": gin.H{
				"id":       req.UserID,
				"username": req.Username,
			},
		})
	}
}
