package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasogane/guildhall/config"
)

// AdminAuth guards the admin API with a shared key and an optional IP
// allow list. An empty allow list admits any address.
func AdminAuth(cfg config.ServerConfig) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(cfg.AdminAllowedIPs))
	for _, ip := range cfg.AdminAllowedIPs {
		allowed[ip] = struct{}{}
	}

	return func(c *gin.Context) {
		if cfg.AdminKey == "" || c.GetHeader("X-Admin-Key") != cfg.AdminKey {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin key required"})
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[c.ClientIP()]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "address not allowed"})
				return
			}
		}
		c.Next()
	}
}
