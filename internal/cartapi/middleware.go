package cartapi

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/pkg/tokens"
)

const claimsContextKey = "client"

// RequireBearer accepts HS256 access tokens in the Authorization header.
func RequireBearer(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    secret,
		SigningMethod: "HS256",
		ContextKey:    claimsContextKey,
		TokenLookup:   "header:Authorization:Bearer ",
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(tokens.AccessClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logging.FromContext(c.Request().Context()).Warn("bearer_rejected", "status", http.StatusUnauthorized, "error", err)
			return c.JSON(http.StatusUnauthorized, failure("unauthorized"))
		},
	})
}
