package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"BProject/service/chat"
	errs "BProject/tools/errs"
)

// Context key the REST handlers read the verified identity from.
const CtxIdentityKey = "identity"

// Middleware verifies the bearer credential on REST routes and stores the
// identity in the request context. Missing or bad credentials end the
// request with 401.
func Middleware(v chat.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrAuthRequired)
			return
		}
		ident, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}
		c.Set(CtxIdentityKey, ident)
		c.Next()
	}
}

// IdentityFrom returns the verified identity set by Middleware, or nil.
func IdentityFrom(c *gin.Context) *chat.Identity {
	if v, ok := c.Get(CtxIdentityKey); ok {
		if ident, ok := v.(*chat.Identity); ok {
			return ident
		}
	}
	return nil
}

func bearerToken(c *gin.Context) string {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
