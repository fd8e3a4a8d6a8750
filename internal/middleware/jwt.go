package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer service
// token and injects the token's subject and scope claims into the
// request context.  The callers of this API are backend services (the
// chat-bot backend, admin tooling), not end users; tokens are minted
// out of band with utils.NewServiceToken and signed with the shared
// secret.  Handlers read the caller via c.Get("svc") and its scope
// via c.Get("scope").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with HS256 only; any other signing method is
			// rejected outright.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set("svc", claims["sub"])
			c.Set("scope", claims["scope"])
			return next(c)
		}
	}
}

// RequireScope returns a middleware enforcing that the authenticated
// caller carries one of the given scopes in its "scope" claim.  It
// assumes JWTAuth ran earlier and stored the scope in the context.
// Requests without an allowed scope are aborted with 403.
func RequireScope(scopes ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		allowed[s] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v := c.Get("scope")
			scope, ok := v.(string)
			if !ok || !allowed[scope] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
