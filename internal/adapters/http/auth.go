package http

import (
	"net/http"
	"strings"

	"github.com/dkeye/Jukebox/internal/adapters/signal"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const guestKey = "guest_id"

// GuestMiddleware gives every browser a stable guest id kept in the cookie
// session.
func GuestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		guestID, _ := sess.Get(guestKey).(string)
		if guestID == "" {
			guestID = uuid.NewString()
			sess.Set(guestKey, guestID)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save guest session")
			}
		}
		c.Set(signal.CtxGuestID, guestID)
		c.Next()
	}
}

// UserClaims carries the authenticated user id in "sub".
type UserClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves an optional bearer token. No token means a guest;
// a token that does not verify is rejected. Browsers cannot set headers on
// websocket upgrades, so the token may also come as a query param or cookie.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFrom(c)
		if raw == "" || secret == "" {
			c.Next()
			return
		}
		sub, err := ParseUserToken(raw, secret)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("ip", c.ClientIP()).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(signal.CtxUserID, sub)
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if q := c.Query("token"); q != "" {
		return q
	}
	if ck, err := c.Cookie("token"); err == nil {
		return ck
	}
	return ""
}

// ParseUserToken verifies an HMAC-signed token and returns its subject.
func ParseUserToken(raw, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &UserClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return "", jwt.ErrTokenRequiredClaimMissing
	}
	return claims.Subject, nil
}
