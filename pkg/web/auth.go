package web

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"

	"github.com/ashdowne/gallery-sync-server/pkg/e"
)

const adminTokenLifetime = 12 * time.Hour

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AdminLoginResponse struct {
	Token string `json:"token"`
}

// AdminLogin checks the configured admin credentials and issues a signed
// session token.
func (h *Handlers) AdminLogin(c *gin.Context) {
	var json AdminLoginRequest
	if err := c.ShouldBindJSON(&json); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userOk := subtle.ConstantTimeCompare([]byte(json.Username), []byte(h.AdminUsername)) == 1
	passOk := subtle.ConstantTimeCompare([]byte(json.Password), []byte(h.AdminPassword)) == 1
	if !userOk || !passOk {
		log.Warn().Str("username", json.Username).Msg("Failed admin login attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.ErrInvalidCredentials.Error()})
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenLifetime)),
	})
	signed, err := token.SignedString(h.JWTSecret)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign admin token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusOK, AdminLoginResponse{Token: signed})
}

// AdminAuthRequired validates the bearer token issued by AdminLogin.
func (h *Handlers) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing Authorization header"})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid Authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return h.JWTSecret, nil
		})
		if err != nil || !token.Valid {
			log.Warn().Err(err).Msg("Failed to validate admin token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to validate token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CronAuthRequired guards the scheduled-job endpoints with a shared secret
// passed as a query parameter by the cron caller.
func (h *Handlers) CronAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.Query("secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(h.CronSecret)) != 1 {
			log.Warn().Str("path", c.Request.URL.Path).Msg("Unauthorized cron attempt")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
