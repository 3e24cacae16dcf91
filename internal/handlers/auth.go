package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"posbackend/internal/clock"
	"posbackend/internal/middleware"
)

type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

/*
POST /auth/login
- Single operator account, password hash from configuration
*/
func OperatorLogin(passwordHash, jwtSecret string, accessTTL time.Duration, clk clock.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSecret == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "authentication is disabled"})
			return
		}

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		expiresAt := clk.Now().Add(accessTTL)
		claims := jwt.MapClaims{
			"sub":  middleware.RoleOperator,
			"role": middleware.RoleOperator,
			"exp":  expiresAt.Unix(),
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(jwtSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":     signed,
			"expiresAt": expiresAt,
		})
	}
}
