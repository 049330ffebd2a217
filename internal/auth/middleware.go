package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ilondustries/inventario/internal/domain"
	"github.com/ilondustries/inventario/pkg/apperrors"
)

const actorKey = "auth_actor"

// Middleware validates bearer tokens and loads the caller identity.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	actor, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated caller.
func ActorFromContext(c *fiber.Ctx) (*domain.Actor, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return nil, false
	}
	actor, ok := val.(*domain.Actor)
	return actor, ok
}
