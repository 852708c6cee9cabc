package cartapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type Deps struct {
	CartHandler *CartHTTP
	AuthHandler *AuthHTTP
	JWTSecret   []byte
	DB          *gorm.DB
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		sqlDB, err := d.DB.DB()
		if err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		if err := sqlDB.PingContext(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	e.POST("/validate", d.AuthHandler.Validate)

	authMW := RequireBearer(d.JWTSecret)
	e.POST("/cart", d.CartHandler.Cart, authMW)
	e.POST("/delete-cart", d.CartHandler.DeleteCart, authMW)
}
