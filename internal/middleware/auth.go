package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/service/auth"
)

type AuthMiddleware struct {
	verifier auth.Verifier
}

func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate verifies the bearer token and stores the caller's principal in
// the context. Requests without a valid token never reach the handlers.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearer(c.GetHeader("Authorization"))
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		principal, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		handler.SetPrincipal(c, principal)

		logger := zerolog.Ctx(c.Request.Context())
		if logger.GetLevel() != zerolog.Disabled {
			l := logger.With().Str("user_id", principal.ID).Logger()
			c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		}
		c.Next()
	}
}
