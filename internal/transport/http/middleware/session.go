package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ulut0002/base-backend/internal/core/domain"
	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/transport/http/pipeline"
)

// SessionKey stores the verified domain.SessionPayload on the gin context.
const SessionKey = "session"

// SessionVerifier checks a signed session token.
type SessionVerifier interface {
	VerifySession(token string) (domain.SessionPayload, error)
}

// SessionToken reads the session cookie, falling back to an Authorization: Bearer header.
func SessionToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			return token
		}
	}

	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireSession rejects requests without a valid session and stores the payload for handlers.
func RequireSession(verifier SessionVerifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookieName)
		if token == "" {
			pipeline.WriteError(c, "session", issue.CodeUnauthorized, nil)
			return
		}

		payload, err := verifier.VerifySession(token)
		if err != nil {
			pipeline.WriteError(c, "session", issue.CodeInvalidSession, nil)
			return
		}

		c.Set(SessionKey, payload)
		c.Set(UserIDKey, payload.SubjectID)
		GetRequestContext(c).UserID = payload.SubjectID

		c.Next()
	}
}

// SessionFrom returns the payload stored by RequireSession.
func SessionFrom(c *gin.Context) (domain.SessionPayload, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return domain.SessionPayload{}, false
	}
	payload, ok := v.(domain.SessionPayload)
	return payload, ok
}
