package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/veil-auth/veil_auth/internal/authn"
)

// OperatorAuth guards the operator API with HS256 bearer tokens. Tokens carry
// an operator id in "sub" and a standard "exp" claim.
func OperatorAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := authn.ParseAndVerifyHS256(tokenStr, []byte(secret))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		expFloat, _ := claims["exp"].(float64)
		if expFloat == 0 || time.Now().Unix() >= int64(expFloat) {
			return fiber.NewError(http.StatusUnauthorized, "token expired")
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing operator id")
		}

		c.Locals("operator_id", sub)
		return c.Next()
	}
}
