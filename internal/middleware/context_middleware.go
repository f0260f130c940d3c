package middleware

import (
	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ContextMiddleware struct {
	auth *service.AuthService
}

func NewContextMiddleware(auth *service.AuthService) *ContextMiddleware {
	return &ContextMiddleware{
		auth: auth,
	}
}

func (m *ContextMiddleware) Init() error {
	return nil
}

// Middleware resolves the session cookie to a user context so handlers
// never touch the session store directly.
func (m *ContextMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := m.auth.GetSessionUserID(c)

		if userID == 0 {
			c.Set("context", &config.UserContext{})
			c.Next()
			return
		}

		user, err := m.auth.GetUser(userID)

		if err != nil {
			log.Error().Err(err).Uint("user_id", userID).Msg("Failed to load session user")
			c.Set("context", &config.UserContext{})
			c.Next()
			return
		}

		if user == nil {
			// Session references a deleted account
			m.auth.DeleteSessionCookie(c)
			c.Set("context", &config.UserContext{})
			c.Next()
			return
		}

		c.Set("context", &config.UserContext{
			UserID:     user.ID,
			Email:      user.Email,
			Name:       user.Name,
			IsLoggedIn: true,
		})
		c.Next()
	}
}
