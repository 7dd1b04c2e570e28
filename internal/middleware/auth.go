package middleware

import (
	"net/http"
	"strings"

	"ngo-inquiry-tracker/internal/auth"

	"github.com/gin-gonic/gin"
)

// AdminKey is the context key under which the admin username is stored.
const AdminKey = "admin"

// JWTAuthMiddleware validates an admin JWT token in the Authorization header
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get Authorization header
		authHeader := c.GetHeader("Authorization")
		tokenString := ""
		if authHeader != "" {
			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is required",
			})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(tokenString, auth.PurposeAdmin)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(AdminKey, claims.Subject)

		c.Next()
	}
}
