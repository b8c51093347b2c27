package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookie = "seyal_session"
	SessionHeader = "X-Seyal-Session"

	sessionTokenLength = 24
	sessionTokenPrefix = "sy_"
	sessionMaxAge      = 90 * 24 * 60 * 60
	sessionContextKey  = "seyal.session"
)

func GenerateSessionID() (string, error) {
	randomBytes := make([]byte, sessionTokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return sessionTokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

func ValidSessionID(id string) bool {
	if !strings.HasPrefix(id, sessionTokenPrefix) {
		return false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(id, sessionTokenPrefix))
	if err != nil {
		return false
	}
	return len(decoded) == sessionTokenLength
}

// sessionMiddleware attaches the caller's session to the request. API
// clients may name their session in a header, browsers get a cookie.
func (s *Server) sessionMiddleware(c *gin.Context) {
	if id := c.GetHeader(SessionHeader); ValidSessionID(id) {
		c.Set(sessionContextKey, id)
		c.Next()
		return
	}

	id, err := c.Cookie(SessionCookie)
	if err != nil || !ValidSessionID(id) {
		id, err = GenerateSessionID()
		if err != nil {
			s.abortWithError(c, err)
			return
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", s.secureCookies, true)
	c.Set(sessionContextKey, id)
	c.Next()
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}
